package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/greentrades/arbot/internal/domain"
)

// SimLedger is the paper-mode ledger. It owns the balances map exclusively;
// every access is mutex-guarded so the pre-warm loop and the main loop can
// interleave safely.
type SimLedger struct {
	quote  string
	logger *slog.Logger

	mu       sync.RWMutex
	balances map[string]map[string]domain.AssetBalance // venue -> asset -> balance
}

// NewSim creates a simulated ledger seeding each venue with a quote-asset
// balance: total split evenly across venues, or perVenue when > 0.
func NewSim(total, perVenue float64, venues []string, quote string, logger *slog.Logger) *SimLedger {
	l := &SimLedger{
		quote:    quote,
		logger:   logger.With(slog.String("component", "sim_ledger")),
		balances: make(map[string]map[string]domain.AssetBalance, len(venues)),
	}

	each := perVenue
	if each <= 0 && len(venues) > 0 {
		each = total / float64(len(venues))
	}
	for _, v := range venues {
		l.balances[v] = map[string]domain.AssetBalance{
			quote: {Free: each, Total: each},
		}
	}
	l.logger.Info("paper balances seeded",
		slog.Int("venues", len(venues)),
		slog.Float64("per_venue", each),
	)
	return l
}

// Available returns the free balance for (venue, asset).
func (l *SimLedger) Available(venue, asset string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[venue][asset].Free
}

// Reserve moves amount from free to reserved atomically. It fails when free
// cannot cover the amount.
func (l *SimLedger) Reserve(venue, asset string, amount float64) bool {
	if amount <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[venue]
	if !ok {
		return false
	}
	b, ok := assets[asset]
	if !ok || b.Free < amount {
		return false
	}
	b.Free -= amount
	b.Reserved += amount
	b.Total = b.Free + b.Reserved
	assets[asset] = b
	return true
}

// Release moves back to free the lesser of amount and the current
// reservation, so Reserved never goes negative.
func (l *SimLedger) Release(venue, asset string, amount float64) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[venue]
	if !ok {
		return
	}
	b := assets[asset]
	freed := amount
	if freed > b.Reserved {
		freed = b.Reserved
	}
	b.Reserved -= freed
	b.Free += freed
	b.Total = b.Free + b.Reserved
	assets[asset] = b
}

// ApplyDelta adjusts the free balance by a signed amount, clamped at zero,
// and recomputes the total.
func (l *SimLedger) ApplyDelta(_ context.Context, venue, asset string, delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assets, ok := l.balances[venue]
	if !ok {
		return
	}
	b := assets[asset]
	b.Free += delta
	if b.Free < 0 {
		l.logger.Warn("balance delta clamped at zero",
			slog.String("venue", venue),
			slog.String("asset", asset),
			slog.Float64("delta", delta),
		)
		b.Free = 0
	}
	b.Total = b.Free + b.Reserved
	assets[asset] = b
}

// Total sums the quote-asset totals across venues.
func (l *SimLedger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, assets := range l.balances {
		total += assets[l.quote].Total
	}
	return total
}

// Summary returns the per-venue breakdown for one asset.
func (l *SimLedger) Summary(asset string) domain.BalanceSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := domain.BalanceSummary{
		Asset:   asset,
		ByVenue: make(map[string]domain.AssetBalance, len(l.balances)),
	}
	for venue, assets := range l.balances {
		b := assets[asset]
		out.ByVenue[venue] = b
		out.TotalFree += b.Free
		out.TotalReserved += b.Reserved
		out.Total += b.Total
	}
	return out
}

// Rebalance computes the midpoint of the two venues' free quote balances and
// moves the deficit from the richer to the poorer side. The transfer is two
// delta applications so the same clamping rules apply.
func (l *SimLedger) Rebalance(ctx context.Context, fromVenue, toVenue, method string) (domain.RebalanceResult, error) {
	res := domain.RebalanceResult{FromVenue: fromVenue, ToVenue: toVenue, Method: method}

	fromFree := l.Available(fromVenue, l.quote)
	toFree := l.Available(toVenue, l.quote)

	rich, poor := fromVenue, toVenue
	richFree, poorFree := fromFree, toFree
	if toFree > fromFree {
		rich, poor = toVenue, fromVenue
		richFree, poorFree = toFree, fromFree
	}

	mid := (richFree + poorFree) / 2
	amount := mid - poorFree
	if amount <= 0 {
		return res, nil
	}

	l.ApplyDelta(ctx, rich, l.quote, -amount)
	l.ApplyDelta(ctx, poor, l.quote, +amount)

	res.Moved = true
	res.Amount = amount
	res.FromVenue = rich
	res.ToVenue = poor
	l.logger.Info("rebalanced",
		slog.String("from", rich),
		slog.String("to", poor),
		slog.Float64("amount", amount),
	)
	return res, nil
}

var (
	_ Ledger     = (*SimLedger)(nil)
	_ Rebalancer = (*SimLedger)(nil)
)
