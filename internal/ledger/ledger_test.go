package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSimLedgerSeeding(t *testing.T) {
	l := NewSim(1000, 0, []string{"binance_a", "binance_b"}, "USDT", testLogger())

	assert.Equal(t, 500.0, l.Available("binance_a", "USDT"))
	assert.Equal(t, 500.0, l.Available("binance_b", "USDT"))
	assert.Equal(t, 1000.0, l.Total())
}

func TestSimLedgerPerVenueOverride(t *testing.T) {
	l := NewSim(1000, 300, []string{"a", "b"}, "USDT", testLogger())

	assert.Equal(t, 300.0, l.Available("a", "USDT"))
	assert.Equal(t, 600.0, l.Total())
}

func TestSimLedgerReserveRelease(t *testing.T) {
	l := NewSim(200, 0, []string{"a", "b"}, "USDT", testLogger())

	require.True(t, l.Reserve("a", "USDT", 80))
	assert.Equal(t, 20.0, l.Available("a", "USDT"))

	// Cannot reserve more than free.
	assert.False(t, l.Reserve("a", "USDT", 50))

	// Releasing more than reserved only frees what was held.
	l.Release("a", "USDT", 999)
	assert.Equal(t, 100.0, l.Available("a", "USDT"))

	sum := l.Summary("USDT")
	assert.Equal(t, 0.0, sum.TotalReserved)
	assert.Equal(t, 200.0, sum.Total)
}

func TestSimLedgerReserveUnknownVenue(t *testing.T) {
	l := NewSim(100, 0, []string{"a", "b"}, "USDT", testLogger())
	assert.False(t, l.Reserve("nope", "USDT", 10))
}

func TestSimLedgerApplyDeltaClampsAtZero(t *testing.T) {
	l := NewSim(100, 0, []string{"a", "b"}, "USDT", testLogger())
	ctx := context.Background()

	l.ApplyDelta(ctx, "a", "USDT", -80)
	assert.Equal(t, 0.0, l.Available("a", "USDT"))

	l.ApplyDelta(ctx, "a", "BTC", 0.5)
	assert.Equal(t, 0.5, l.Available("a", "BTC"))
}

func TestSimLedgerRebalanceEqualizes(t *testing.T) {
	l := NewSim(0, 0, []string{"a", "b"}, "USDT", testLogger())
	ctx := context.Background()
	l.ApplyDelta(ctx, "a", "USDT", 700)
	l.ApplyDelta(ctx, "b", "USDT", 300)

	res, err := l.Rebalance(ctx, "a", "b", "equal")
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.Equal(t, "a", res.FromVenue)
	assert.Equal(t, "b", res.ToVenue)
	assert.InDelta(t, 200.0, res.Amount, 1e-9)
	assert.InDelta(t, 500.0, l.Available("a", "USDT"), 1e-9)
	assert.InDelta(t, 500.0, l.Available("b", "USDT"), 1e-9)
}

func TestSimLedgerRebalanceDirectionAgnostic(t *testing.T) {
	// The caller may pass the venues in either order; the ledger always moves
	// rich to poor.
	l := NewSim(0, 0, []string{"a", "b"}, "USDT", testLogger())
	ctx := context.Background()
	l.ApplyDelta(ctx, "a", "USDT", 100)
	l.ApplyDelta(ctx, "b", "USDT", 900)

	res, err := l.Rebalance(ctx, "a", "b", "equal")
	require.NoError(t, err)
	assert.Equal(t, "b", res.FromVenue)
	assert.Equal(t, "a", res.ToVenue)
	assert.InDelta(t, 400.0, res.Amount, 1e-9)
}

func TestSimLedgerRebalanceAlreadyBalanced(t *testing.T) {
	l := NewSim(1000, 0, []string{"a", "b"}, "USDT", testLogger())

	res, err := l.Rebalance(context.Background(), "a", "b", "equal")
	require.NoError(t, err)
	assert.False(t, res.Moved)
}

type fakeFetcher struct {
	byVenue map[string]map[string]domain.AssetBalance
	err     error
	calls   int
}

func (f *fakeFetcher) FetchBalance(_ context.Context, venue string) (map[string]domain.AssetBalance, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.AssetBalance, len(f.byVenue[venue]))
	for k, v := range f.byVenue[venue] {
		out[k] = v
	}
	return out, nil
}

func TestLiveLedgerRefreshAppliesReserveAndPercentage(t *testing.T) {
	fetcher := &fakeFetcher{byVenue: map[string]map[string]domain.AssetBalance{
		"a": {"USDT": {Free: 1000, Total: 1000}},
		"b": {"USDT": {Free: 40, Total: 40}},
	}}
	cfg := config.LiveBalanceConfig{
		MinReservePerVenue: 50,
		UsePercentage:      true,
		Percentage:         50,
	}
	l := NewLive(cfg, fetcher, []string{"a", "b"}, "USDT", testLogger())

	require.NoError(t, l.Refresh(context.Background()))

	// (1000 - 50) * 50% = 475
	assert.InDelta(t, 475.0, l.Available("a", "USDT"), 1e-9)
	// Reserve exceeds the free balance, clamped at zero.
	assert.Equal(t, 0.0, l.Available("b", "USDT"))
}

func TestLiveLedgerFetchFailureKeepsLastKnown(t *testing.T) {
	fetcher := &fakeFetcher{byVenue: map[string]map[string]domain.AssetBalance{
		"a": {"USDT": {Free: 100, Total: 100}},
		"b": {"USDT": {Free: 200, Total: 200}},
	}}
	l := NewLive(config.LiveBalanceConfig{}, fetcher, []string{"a", "b"}, "USDT", testLogger())
	require.NoError(t, l.Refresh(context.Background()))
	require.Equal(t, 100.0, l.Available("a", "USDT"))

	fetcher.err = assert.AnError
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, 100.0, l.Available("a", "USDT"))
	assert.Equal(t, 200.0, l.Available("b", "USDT"))
}

func TestLiveLedgerReserveAlwaysSucceeds(t *testing.T) {
	l := NewLive(config.LiveBalanceConfig{}, &fakeFetcher{}, []string{"a"}, "USDT", testLogger())
	assert.True(t, l.Reserve("a", "USDT", 1e9))
}

func TestLiveLedgerApplyDeltaRefetches(t *testing.T) {
	fetcher := &fakeFetcher{byVenue: map[string]map[string]domain.AssetBalance{
		"a": {"USDT": {Free: 100, Total: 100}},
	}}
	l := NewLive(config.LiveBalanceConfig{}, fetcher, []string{"a"}, "USDT", testLogger())
	require.NoError(t, l.Refresh(context.Background()))

	fetcher.byVenue["a"]["USDT"] = domain.AssetBalance{Free: 60, Total: 60}
	l.ApplyDelta(context.Background(), "a", "USDT", -40)
	assert.Equal(t, 60.0, l.Available("a", "USDT"))
}
