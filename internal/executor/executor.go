// Package executor turns one opportunity into a ledger mutation (paper mode)
// or a pair of real orders (live mode), producing a uniform TradeResult and
// running statistics.
package executor

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/ledger"
	"github.com/greentrades/arbot/internal/venue"
)

// slippageCap bounds the modeled per-leg slippage in paper mode.
const slippageCap = 0.01

// VenueGateway is the slice of the venue registry the executor needs.
type VenueGateway interface {
	Market(venue, symbol string) (domain.Market, bool)
	Client(venue string) venue.Client
	FetchBalance(ctx context.Context, venue string) (map[string]domain.AssetBalance, error)
}

// BookSource provides cached order books for slippage estimation.
type BookSource interface {
	OrderBook(ctx context.Context, venue, symbol string) *domain.OrderbookSnapshot
}

// Executor is the dual-mode trade state machine. Execute is never called
// concurrently by construction, but the stats and open-order map are still
// guarded because the command channel reads them from another goroutine.
type Executor struct {
	strat  config.StrategyConfig
	order  config.OrderConfig
	mode   domain.Mode
	book   ledger.Ledger
	venues VenueGateway
	books  BookSource
	logger *slog.Logger

	stopped atomic.Bool

	// fillFactor models the paper-mode partial fill, in [0.95, 1.0].
	fillFactor func() float64
	sleep      func(ctx context.Context, d time.Duration)
	now        func() time.Time

	mu    sync.Mutex
	open  map[string]domain.OpenOrder
	stats domain.TradeStats
}

// New builds an executor for the given mode.
func New(strat config.StrategyConfig, order config.OrderConfig, mode domain.Mode, book ledger.Ledger, venues VenueGateway, books BookSource, logger *slog.Logger) *Executor {
	return &Executor{
		strat:      strat,
		order:      order,
		mode:       mode,
		book:       book,
		venues:     venues,
		books:      books,
		logger:     logger.With(slog.String("component", "executor"), slog.String("mode", string(mode))),
		fillFactor: func() float64 { return 0.95 + rand.Float64()*0.05 },
		sleep:      sleepCtx,
		now:        time.Now,
		open:       make(map[string]domain.OpenOrder),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Execute runs one attempt and always returns a populated TradeResult; every
// failure is reported through the result, never as a dangling open order.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity) domain.TradeResult {
	res := domain.TradeResult{
		ID:            uuid.New().String(),
		Mode:          e.mode,
		Symbol:        opp.Symbol,
		BuyVenue:      opp.BuyVenue,
		SellVenue:     opp.SellVenue,
		SpreadPercent: opp.SpreadPercent,
		ExecutedAt:    e.now(),
	}
	if e.stopped.Load() {
		res.Error = domain.ErrEmergencyStop.Error()
		e.recordFailure()
		return res
	}

	if e.mode == domain.ModeLive {
		return e.executeLive(ctx, opp, res)
	}
	return e.executePaper(ctx, opp, res)
}

// EmergencyStop refuses all further executions and cancels any orders still
// open.
func (e *Executor) EmergencyStop(ctx context.Context) {
	e.stopped.Store(true)
	e.CancelAll(ctx)
	e.logger.Warn("emergency stop engaged")
}

// CancelAll cancels every tracked open order. Cancel failures are logged and
// the entry is removed regardless; the venue owns the truth about the order.
func (e *Executor) CancelAll(ctx context.Context) {
	e.mu.Lock()
	orders := make([]domain.OpenOrder, 0, len(e.open))
	for _, o := range e.open {
		orders = append(orders, o)
	}
	e.mu.Unlock()

	for _, o := range orders {
		if c := e.venues.Client(o.Venue); c != nil {
			if err := c.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
				e.logger.Error("cancel failed",
					slog.String("venue", o.Venue),
					slog.String("order_id", o.OrderID),
					slog.String("error", err.Error()),
				)
			}
		}
		e.dropOrder(o.OrderID)
	}
}

// Stats returns a snapshot of the running totals.
func (e *Executor) Stats() domain.TradeStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// OpenOrders returns the currently tracked live orders.
func (e *Executor) OpenOrders() []domain.OpenOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.OpenOrder, 0, len(e.open))
	for _, o := range e.open {
		out = append(out, o)
	}
	return out
}

func (e *Executor) trackOrder(o domain.OpenOrder) {
	e.mu.Lock()
	e.open[o.OrderID] = o
	e.mu.Unlock()
}

func (e *Executor) dropOrder(orderID string) {
	e.mu.Lock()
	delete(e.open, orderID)
	e.mu.Unlock()
}

func (e *Executor) recordSuccess(res domain.TradeResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalTrades++
	e.stats.SuccessfulTrades++
	e.stats.GrossProfit += res.GrossProfit
	e.stats.Fees += res.Fees
	e.stats.SlippageCost += res.SlippageCost
	e.stats.NetProfit += res.NetProfit
}

func (e *Executor) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalTrades++
	e.stats.FailedTrades++
}

func (e *Executor) fail(res domain.TradeResult, msg string) domain.TradeResult {
	res.Success = false
	res.Error = msg
	e.recordFailure()
	e.logger.Warn("trade failed",
		slog.String("symbol", res.Symbol),
		slog.String("buy_venue", res.BuyVenue),
		slog.String("sell_venue", res.SellVenue),
		slog.String("error", msg),
	)
	return res
}

// takerFee returns the venue's taker fee rate for the symbol, falling back
// to the configured default.
func (e *Executor) takerFee(venueID, symbol string) float64 {
	if m, ok := e.venues.Market(venueID, symbol); ok && m.TakerFee > 0 {
		return m.TakerFee
	}
	return e.strat.DefaultFeeRate
}
