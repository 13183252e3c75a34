package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greentrades/arbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, success, mode, symbol, buy_venue, sell_venue,
	filled_notional, filled_quantity, buy_price, sell_price, spread_percent,
	gross_profit, buy_fee, sell_fee, fees, slippage_cost, net_profit,
	fill_rate, buy_order_id, sell_order_id, emergency, error, executed_at`

// Insert stores one trade result. Re-inserting the same ID is a no-op so a
// retried report never duplicates a row.
func (s *TradeStore) Insert(ctx context.Context, res domain.TradeResult) error {
	const query = `
		INSERT INTO trade_results (
			id, success, mode, symbol, buy_venue, sell_venue,
			filled_notional, filled_quantity, buy_price, sell_price,
			spread_percent, gross_profit, buy_fee, sell_fee, fees,
			slippage_cost, net_profit, fill_rate,
			buy_order_id, sell_order_id, emergency, error, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21, $22, $23
		) ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		res.ID, res.Success, string(res.Mode), res.Symbol, res.BuyVenue, res.SellVenue,
		res.FilledNotional, res.FilledQuantity, res.BuyPrice, res.SellPrice,
		res.SpreadPercent, res.GrossProfit, res.BuyFee, res.SellFee, res.Fees,
		res.SlippageCost, res.NetProfit, res.FillRate,
		res.BuyOrderID, res.SellOrderID, res.Emergency, res.Error, res.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade result: %w", err)
	}
	return nil
}

// Recent returns the newest trade results, most recent first.
func (s *TradeStore) Recent(ctx context.Context, limit int) ([]domain.TradeResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + tradeSelectCols + ` FROM trade_results ORDER BY executed_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	results, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent trades: %w", err)
	}
	return results, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeResult, error) {
	var out []domain.TradeResult
	for rows.Next() {
		var r domain.TradeResult
		var mode string
		if err := rows.Scan(
			&r.ID, &r.Success, &mode, &r.Symbol, &r.BuyVenue, &r.SellVenue,
			&r.FilledNotional, &r.FilledQuantity, &r.BuyPrice, &r.SellPrice,
			&r.SpreadPercent, &r.GrossProfit, &r.BuyFee, &r.SellFee, &r.Fees,
			&r.SlippageCost, &r.NetProfit, &r.FillRate,
			&r.BuyOrderID, &r.SellOrderID, &r.Emergency, &r.Error, &r.ExecutedAt,
		); err != nil {
			return nil, err
		}
		r.Mode = domain.Mode(mode)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ domain.TradeStore = (*TradeStore)(nil)
