// Package sizing converts available ledger capital into a bounded trade
// notional and owns the auto-rebalance trigger.
package sizing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/ledger"
)

// MarketSource provides loaded venue market metadata.
type MarketSource interface {
	Market(venue, symbol string) (domain.Market, bool)
}

// Engine sizes trades against the ledger using the configured model. One
// engine instance serves the whole bot; the rebalance cooldown is shared
// state guarded by its mutex.
type Engine struct {
	cfg         config.SizingConfig
	rebal       config.RebalancingConfig
	mode        domain.Mode
	quote       string
	maxPosition float64

	book       ledger.Ledger
	rebalancer ledger.Rebalancer // nil unless the ledger can move capital
	refresher  ledger.Refresher  // nil unless balances can be re-fetched
	markets    MarketSource
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	mu            sync.Mutex
	lastRebalance time.Time
}

// New builds a sizing engine. The ledger's optional capabilities are
// inspected once here, not on every sizing call.
func New(cfg config.SizingConfig, rebal config.RebalancingConfig, risk config.RiskConfig, mode domain.Mode, quote string, book ledger.Ledger, markets MarketSource, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:         cfg,
		rebal:       rebal,
		mode:        mode,
		quote:       quote,
		maxPosition: risk.MaxPositionPerSymbol,
		book:        book,
		markets:     markets,
		logger:      logger.With(slog.String("component", "sizing")),
		now:         time.Now,
		sleep:       sleepCtx,
	}
	if r, ok := book.(ledger.Rebalancer); ok {
		e.rebalancer = r
	}
	if r, ok := book.(ledger.Refresher); ok {
		e.refresher = r
	}
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SizeTrade returns the proposed quote-asset notional for one venue pair. It
// may trigger a rebalance and re-size once when the first pass collapses
// below the trigger floor; the trade-balance fraction is applied exactly once
// after all passes.
func (e *Engine) SizeTrade(ctx context.Context, symbol, buyVenue, sellVenue string, buyPrice float64) (float64, error) {
	size := e.rawSize(symbol, buyVenue, sellVenue, buyPrice)

	if e.shouldRebalance(size) {
		if err := e.triggerRebalance(ctx, buyVenue, sellVenue); err != nil {
			e.logger.Warn("rebalance trigger failed",
				slog.String("buy_venue", buyVenue),
				slog.String("sell_venue", sellVenue),
				slog.String("error", err.Error()),
			)
		} else {
			e.markRebalanced()
			size = e.rawSize(symbol, buyVenue, sellVenue, buyPrice)
		}
	}

	fraction := e.cfg.TradeBalanceFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 1
	}
	size *= fraction

	return e.applyBounds(size, symbol, buyVenue), nil
}

// rawSize runs the configured model without the fraction scaling, so a
// rebalance re-size never double-applies it.
func (e *Engine) rawSize(symbol, buyVenue, sellVenue string, buyPrice float64) float64 {
	buyAvail := e.book.Available(buyVenue, e.quote)
	sellAvail := e.book.Available(sellVenue, e.quote)
	if base := domain.SymbolBase(symbol); base != "" && buyPrice > 0 {
		// Coin holdings on the sell venue count at their quote-equivalent
		// value.
		sellAvail += e.book.Available(sellVenue, base) * buyPrice
	}

	switch e.cfg.Model {
	case "simple":
		return min(buyAvail, sellAvail) * 0.8
	default: // prefund_split
		buyBudget := buyAvail * e.cfg.QuoteRatio
		sellBudget := sellAvail * e.cfg.CoinRatio
		return min(buyBudget, sellBudget) * e.cfg.Utilization
	}
}

func (e *Engine) shouldRebalance(size float64) bool {
	if !e.rebal.Enabled || size >= e.rebal.MinTradeTrigger {
		return false
	}
	if e.rebalancer == nil && e.refresher == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cooldown := time.Duration(e.rebal.CooldownSec * float64(time.Second))
	if !e.lastRebalance.IsZero() && e.now().Sub(e.lastRebalance) < cooldown {
		return false
	}
	return true
}

// markRebalanced starts the cooldown window. Only successful triggers call
// it, so a failed attempt does not burn the window.
func (e *Engine) markRebalanced() {
	e.mu.Lock()
	e.lastRebalance = e.now()
	e.mu.Unlock()
}

func (e *Engine) triggerRebalance(ctx context.Context, buyVenue, sellVenue string) error {
	settle := time.Duration(e.rebal.PaperSettleSec * float64(time.Second))
	if e.mode == domain.ModeLive {
		settle = time.Duration(e.rebal.LiveSettleSec * float64(time.Second))
	}

	switch {
	case e.rebalancer != nil:
		res, err := e.rebalancer.Rebalance(ctx, buyVenue, sellVenue, e.rebal.Method)
		if err != nil {
			return err
		}
		if res.Moved {
			e.logger.Info("auto-rebalance moved capital",
				slog.String("from", res.FromVenue),
				slog.String("to", res.ToVenue),
				slog.Float64("amount", res.Amount),
			)
		}
	case e.refresher != nil:
		// Live ledgers cannot move capital across venues; a re-fetch is the
		// most a trigger can do.
		if err := e.refresher.Refresh(ctx); err != nil {
			return err
		}
	}

	e.sleep(ctx, settle)
	return nil
}

// applyBounds clamps the size to the per-symbol risk ceiling and, when
// metadata is loaded for the buy venue, the market's order-cost bounds.
func (e *Engine) applyBounds(size float64, symbol, buyVenue string) float64 {
	if size <= 0 {
		return 0
	}
	if e.maxPosition > 0 && size > e.maxPosition {
		size = e.maxPosition
	}
	if m, ok := e.markets.Market(buyVenue, symbol); ok {
		if m.MinCost > 0 && size < m.MinCost {
			size = m.MinCost
		}
		if m.MaxCost > 0 && size > m.MaxCost {
			size = m.MaxCost
		}
	}
	return size
}
