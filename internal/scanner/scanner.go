// Package scanner detects cross-venue spread opportunities from cached order
// books. It only reads; execution and ledger mutation happen elsewhere.
package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
)

// BookSource provides cached order-book snapshots.
type BookSource interface {
	OrderBook(ctx context.Context, venue, symbol string) *domain.OrderbookSnapshot
}

// Sizer proposes a trade notional for a venue pair. A non-positive notional
// rejects the candidate.
type Sizer interface {
	SizeTrade(ctx context.Context, symbol, buyVenue, sellVenue string, buyPrice float64) (float64, error)
}

type quote struct {
	venue string
	bid   domain.PriceLevel
	ask   domain.PriceLevel
}

// Scanner evaluates the tracked symbol list against every ordered venue pair.
type Scanner struct {
	books     BookSource
	sizer     Sizer
	venues    []string
	symbols   []string
	minSpread float64
	logger    *slog.Logger
}

// New builds a scanner over the given venues. Only the first
// symbols.max_tracked entries of the priority list are evaluated. Priority
// entries may be bare coins ("BTC") or full pairs ("BTC/USDT"); bare coins
// are paired with the given quote asset.
func New(cfg config.SymbolsConfig, strat config.StrategyConfig, quote string, books BookSource, sizer Sizer, venues []string, logger *slog.Logger) *Scanner {
	priority := cfg.Priority
	if cfg.MaxTracked > 0 && len(priority) > cfg.MaxTracked {
		priority = priority[:cfg.MaxTracked]
	}
	symbols := make([]string, 0, len(priority))
	for _, coin := range priority {
		if s := domain.NormalizeSymbol(coin, quote); s != "" {
			symbols = append(symbols, s)
		}
	}
	return &Scanner{
		books:     books,
		sizer:     sizer,
		venues:    venues,
		symbols:   symbols,
		minSpread: strat.MinSpreadPercent,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Scan evaluates one cycle and returns every opportunity above the minimum
// spread with a positive proposed notional, in encounter order.
func (s *Scanner) Scan(ctx context.Context) []domain.Opportunity {
	var out []domain.Opportunity
	for _, symbol := range s.symbols {
		out = append(out, s.scanSymbol(ctx, symbol)...)
	}
	return out
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) []domain.Opportunity {
	quotes := make([]quote, 0, len(s.venues))
	for _, venue := range s.venues {
		book := s.books.OrderBook(ctx, venue, symbol)
		if book == nil {
			continue
		}
		bid, okBid := book.BestBid()
		ask, okAsk := book.BestAsk()
		if !okBid || !okAsk {
			continue
		}
		quotes = append(quotes, quote{venue: venue, bid: bid, ask: ask})
	}
	if len(quotes) < 2 {
		return nil
	}

	var out []domain.Opportunity
	for _, buy := range quotes {
		for _, sell := range quotes {
			if buy.venue == sell.venue {
				continue
			}
			spread := (sell.bid.Price - buy.ask.Price) / buy.ask.Price * 100
			if spread < s.minSpread {
				continue
			}
			notional, err := s.sizer.SizeTrade(ctx, symbol, buy.venue, sell.venue, buy.ask.Price)
			if err != nil {
				s.logger.Warn("sizing failed",
					slog.String("symbol", symbol),
					slog.String("buy_venue", buy.venue),
					slog.String("sell_venue", sell.venue),
					slog.String("error", err.Error()),
				)
				continue
			}
			if notional <= 0 {
				continue
			}
			out = append(out, domain.Opportunity{
				ID:               uuid.NewString(),
				Symbol:           symbol,
				BuyVenue:         buy.venue,
				SellVenue:        sell.venue,
				BuyPrice:         buy.ask.Price,
				SellPrice:        sell.bid.Price,
				SpreadPercent:    spread,
				ProposedNotional: notional,
				Score:            spread,
				DetectedAt:       time.Now(),
			})
		}
	}
	return out
}

// Best returns the highest-score opportunity. Ties keep the one discovered
// first. Returns nil for an empty slice.
func Best(opps []domain.Opportunity) *domain.Opportunity {
	if len(opps) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(opps); i++ {
		if opps[i].Score > opps[best].Score {
			best = i
		}
	}
	return &opps[best]
}
