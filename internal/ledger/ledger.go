// Package ledger implements per-venue, per-asset balance accounting. The
// simulated ledger is the source of truth in paper mode; the live ledger is a
// best-effort cache of venue-reported balances.
package ledger

import (
	"context"

	"github.com/greentrades/arbot/internal/domain"
)

// Ledger is the narrow operation set every other component uses to read and
// mutate balances. All mutations go through here so that stronger locking or
// transactional discipline only ever needs to be added inside the ledger.
type Ledger interface {
	// Available returns the free balance for (venue, asset).
	Available(venue, asset string) float64

	// Reserve moves amount from free to reserved. It returns false when the
	// free balance cannot cover the amount.
	Reserve(venue, asset string, amount float64) bool

	// Release moves back to free the lesser of amount and the current
	// reservation.
	Release(venue, asset string, amount float64)

	// ApplyDelta adjusts the free balance by a signed amount. The simulated
	// ledger clamps free at zero; the live ledger re-fetches instead of
	// mutating locally.
	ApplyDelta(ctx context.Context, venue, asset string, delta float64)

	// Total returns the summed quote-asset total across venues.
	Total() float64

	// Summary returns the per-venue breakdown for one asset.
	Summary(asset string) domain.BalanceSummary
}

// Rebalancer is the optional capability of ledgers that can move capital
// between venues. Only the simulated ledger implements it; callers check for
// it once via a type assertion, not per call.
type Rebalancer interface {
	Rebalance(ctx context.Context, fromVenue, toVenue, method string) (domain.RebalanceResult, error)
}

// Refresher is the optional capability of ledgers whose balances come from
// the venues and can be re-fetched on demand.
type Refresher interface {
	Refresh(ctx context.Context) error
}
