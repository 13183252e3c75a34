package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
)

// BalanceFetcher is the slice of the venue registry the live ledger needs.
type BalanceFetcher interface {
	FetchBalance(ctx context.Context, venue string) (map[string]domain.AssetBalance, error)
}

// LiveLedger caches venue-reported balances. Capital control happens venue
// side, so Reserve/Release are no-ops and ApplyDelta re-fetches instead of
// mutating locally. A fetch failure leaves the last known values in place.
type LiveLedger struct {
	cfg     config.LiveBalanceConfig
	fetcher BalanceFetcher
	venues  []string
	quote   string
	logger  *slog.Logger

	mu       sync.RWMutex
	balances map[string]map[string]domain.AssetBalance
}

// NewLive creates a live ledger for the given venues. Call Refresh before
// first use to populate the cache.
func NewLive(cfg config.LiveBalanceConfig, fetcher BalanceFetcher, venues []string, quote string, logger *slog.Logger) *LiveLedger {
	return &LiveLedger{
		cfg:      cfg,
		fetcher:  fetcher,
		venues:   venues,
		quote:    quote,
		logger:   logger.With(slog.String("component", "live_ledger")),
		balances: make(map[string]map[string]domain.AssetBalance, len(venues)),
	}
}

// Refresh re-fetches every venue's balances. Per-venue failures are logged
// and leave that venue's cache untouched; Refresh itself never fails once at
// least one venue answered.
func (l *LiveLedger) Refresh(ctx context.Context) error {
	var totalAvailable float64
	for _, venue := range l.venues {
		if err := l.refreshVenue(ctx, venue); err != nil {
			l.logger.Error("balance fetch failed, keeping last known",
				slog.String("venue", venue),
				slog.String("error", err.Error()),
			)
			continue
		}
		totalAvailable += l.Available(venue, l.quote)
	}

	// The usage ceiling is advisory only.
	if l.cfg.MaxTotalUsage > 0 && totalAvailable > l.cfg.MaxTotalUsage {
		l.logger.Warn("available capital exceeds configured usage ceiling",
			slog.Float64("available", totalAvailable),
			slog.Float64("ceiling", l.cfg.MaxTotalUsage),
		)
	}
	l.logger.Info("live balances refreshed", slog.Float64("available", totalAvailable))
	return nil
}

func (l *LiveLedger) refreshVenue(ctx context.Context, venue string) error {
	fetched, err := l.fetcher.FetchBalance(ctx, venue)
	if err != nil {
		return err
	}

	// Apply the reserve and percentage shaping to the quote asset: that is
	// the capital the sizing engine is allowed to see.
	if q, ok := fetched[l.quote]; ok {
		q.Free -= l.cfg.MinReservePerVenue
		if q.Free < 0 {
			q.Free = 0
		}
		if l.cfg.UsePercentage && l.cfg.Percentage > 0 {
			q.Free *= l.cfg.Percentage / 100
		}
		q.Total = q.Free + q.Reserved
		fetched[l.quote] = q
	}

	l.mu.Lock()
	l.balances[venue] = fetched
	l.mu.Unlock()
	return nil
}

// Available returns the cached free balance for (venue, asset).
func (l *LiveLedger) Available(venue, asset string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[venue][asset].Free
}

// Reserve always succeeds: the venue enforces real capital limits.
func (l *LiveLedger) Reserve(venue, asset string, amount float64) bool { return true }

// Release is a no-op in live mode.
func (l *LiveLedger) Release(venue, asset string, amount float64) {}

// ApplyDelta triggers a best-effort re-fetch of the venue's balances rather
// than mutating the cache locally.
func (l *LiveLedger) ApplyDelta(ctx context.Context, venue, asset string, delta float64) {
	if err := l.refreshVenue(ctx, venue); err != nil {
		l.logger.Warn("post-trade balance refresh failed",
			slog.String("venue", venue),
			slog.String("error", err.Error()),
		)
	}
}

// Total sums the cached quote-asset totals across venues.
func (l *LiveLedger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, assets := range l.balances {
		total += assets[l.quote].Total
	}
	return total
}

// Summary returns the per-venue breakdown for one asset.
func (l *LiveLedger) Summary(asset string) domain.BalanceSummary {
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

var (
	_ Ledger    = (*LiveLedger)(nil)
	_ Refresher = (*LiveLedger)(nil)
)
