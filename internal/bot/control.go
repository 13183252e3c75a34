package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/ledger"
)

// The methods below form the control surface the notification/command
// channel calls after its own authorization check.

// Status reports the bot's current run state.
func (b *Bot) Status() domain.BotStatus {
	var uptime time.Duration
	if b.running.Load() {
		uptime = time.Since(b.startedAt)
	}
	return domain.BotStatus{
		Mode:       b.mode,
		Running:    b.running.Load(),
		Paused:     b.paused.Load(),
		Uptime:     uptime,
		Strategies: 1, // cross-venue spot arbitrage
		Venues:     len(b.venues.Venues()),
		Cycles:     b.cycles.Load(),
	}
}

// Stats returns the executor's running totals.
func (b *Bot) Stats() domain.TradeStats {
	return b.exec.Stats()
}

// BalanceSummary returns the per-venue quote-asset breakdown.
func (b *Bot) BalanceSummary() domain.BalanceSummary {
	return b.book.Summary(b.cfg.QuoteAsset)
}

// Pause keeps the loop running but skips trading in each cycle.
func (b *Bot) Pause() {
	b.paused.Store(true)
	b.logger.Info("bot paused")
}

// Resume lifts a pause.
func (b *Bot) Resume() {
	b.paused.Store(false)
	b.logger.Info("bot resumed")
}

// Stop cancels the run loop. The in-flight cycle finishes first. Safe to
// call from any goroutine, any number of times.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// TriggerRebalance equalizes the two venues with the most skewed free quote
// balances. On a live ledger it re-fetches balances instead; both via the
// ledger's optional capabilities.
func (b *Bot) TriggerRebalance(ctx context.Context) (domain.RebalanceResult, error) {
	if r, ok := b.book.(ledger.Rebalancer); ok {
		from, to := b.skewedPair()
		if from == "" || to == "" {
			return domain.RebalanceResult{}, fmt.Errorf("bot: need two venues to rebalance")
		}
		return r.Rebalance(ctx, from, to, b.cfg.Rebalancing.Method)
	}
	if r, ok := b.book.(ledger.Refresher); ok {
		return domain.RebalanceResult{}, r.Refresh(ctx)
	}
	return domain.RebalanceResult{}, fmt.Errorf("bot: ledger supports neither rebalance nor refresh")
}

// skewedPair returns the richest and poorest venues by free quote balance.
func (b *Bot) skewedPair() (rich, poor string) {
	summary := b.book.Summary(b.cfg.QuoteAsset)
	var richFree, poorFree float64
	first := true
	for venueID, bal := range summary.ByVenue {
		if first {
			rich, poor = venueID, venueID
			richFree, poorFree = bal.Free, bal.Free
			first = false
			continue
		}
		if bal.Free > richFree {
			rich, richFree = venueID, bal.Free
		}
		if bal.Free < poorFree {
			poor, poorFree = venueID, bal.Free
		}
	}
	if rich == poor {
		return "", ""
	}
	return rich, poor
}
