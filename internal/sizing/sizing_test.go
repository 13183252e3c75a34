package sizing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/ledger"
)

type fakeMarkets struct {
	markets map[string]domain.Market // venue -> market (symbol ignored)
}

func (f *fakeMarkets) Market(venue, symbol string) (domain.Market, bool) {
	m, ok := f.markets[venue]
	return m, ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sizingConfig() config.SizingConfig {
	return config.SizingConfig{
		Model:                "prefund_split",
		QuoteRatio:           0.5,
		CoinRatio:            0.5,
		Utilization:          1.0,
		TradeBalanceFraction: 1.0,
	}
}

func newEngine(t *testing.T, cfg config.SizingConfig, rebal config.RebalancingConfig, risk config.RiskConfig, book ledger.Ledger) *Engine {
	t.Helper()
	e := New(cfg, rebal, risk, domain.ModePaper, "USDT", book, &fakeMarkets{}, testLogger())
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func seededLedger(perVenue float64) *ledger.SimLedger {
	return ledger.NewSim(0, perVenue, []string{"a", "b"}, "USDT", testLogger())
}

func TestPrefundSplitModel(t *testing.T) {
	book := seededLedger(400)
	e := newEngine(t, sizingConfig(), config.RebalancingConfig{}, config.RiskConfig{MaxPositionPerSymbol: 1000}, book)

	size, err := e.SizeTrade(context.Background(), "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	// min(400*0.5, 400*0.5) * 1.0
	assert.InDelta(t, 200.0, size, 1e-9)
}

func TestSimpleModel(t *testing.T) {
	cfg := sizingConfig()
	cfg.Model = "simple"
	book := seededLedger(100)
	e := newEngine(t, cfg, config.RebalancingConfig{}, config.RiskConfig{MaxPositionPerSymbol: 1000}, book)

	size, err := e.SizeTrade(context.Background(), "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 80.0, size, 1e-9)
}

func TestFractionAppliedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	risk := config.RiskConfig{MaxPositionPerSymbol: 10000}

	base := sizingConfig()
	eFull := newEngine(t, base, config.RebalancingConfig{}, risk, seededLedger(400))
	full, err := eFull.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)

	scaled := sizingConfig()
	scaled.TradeBalanceFraction = 0.6
	eScaled := newEngine(t, scaled, config.RebalancingConfig{}, risk, seededLedger(400))
	got, err := eScaled.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)

	// 0.6x the unscaled result, never 0.36x.
	assert.InDelta(t, full*0.6, got, 1e-9)
}

func TestFractionAppliedOnceEvenAfterRebalance(t *testing.T) {
	book := seededLedger(0)
	ctx := context.Background()
	// Lopsided balances so the first pass collapses below the trigger and the
	// rebalance equalizes them.
	book.ApplyDelta(ctx, "a", "USDT", 10)
	book.ApplyDelta(ctx, "b", "USDT", 790)

	cfg := sizingConfig()
	cfg.TradeBalanceFraction = 0.6
	rebal := config.RebalancingConfig{Enabled: true, MinTradeTrigger: 50, CooldownSec: 60, Method: "equal"}
	e := newEngine(t, cfg, rebal, config.RiskConfig{MaxPositionPerSymbol: 10000}, book)

	size, err := e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	// After equalizing to 400/400: min(200, 200) * 1.0 * 0.6.
	assert.InDelta(t, 120.0, size, 1e-9)
}

func TestRebalanceCooldownBlocksSecondTrigger(t *testing.T) {
	book := seededLedger(0)
	ctx := context.Background()
	book.ApplyDelta(ctx, "a", "USDT", 10)
	book.ApplyDelta(ctx, "b", "USDT", 790)

	rebal := config.RebalancingConfig{Enabled: true, MinTradeTrigger: 5000, CooldownSec: 60, Method: "equal"}
	e := newEngine(t, sizingConfig(), rebal, config.RiskConfig{MaxPositionPerSymbol: 10000}, book)
	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }

	_, err := e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	balancedA := book.Available("a", "USDT")
	require.InDelta(t, 400.0, balancedA, 1e-9)

	// Skew again; within the cooldown no second rebalance may fire.
	book.ApplyDelta(ctx, "a", "USDT", -300)
	now = now.Add(30 * time.Second)
	_, err = e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, book.Available("a", "USDT"), 1e-9)

	// After the cooldown it fires again.
	now = now.Add(31 * time.Second)
	_, err = e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 250.0, book.Available("a", "USDT"), 1e-9)
}

type flakyRebalLedger struct {
	*ledger.SimLedger
	failures int
	calls    int
}

func (f *flakyRebalLedger) Rebalance(ctx context.Context, fromVenue, toVenue, method string) (domain.RebalanceResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.RebalanceResult{}, assert.AnError
	}
	return f.SimLedger.Rebalance(ctx, fromVenue, toVenue, method)
}

func TestFailedRebalanceDoesNotConsumeCooldown(t *testing.T) {
	book := &flakyRebalLedger{SimLedger: seededLedger(0), failures: 1}
	ctx := context.Background()
	book.ApplyDelta(ctx, "a", "USDT", 10)
	book.ApplyDelta(ctx, "b", "USDT", 790)

	rebal := config.RebalancingConfig{Enabled: true, MinTradeTrigger: 5000, CooldownSec: 60, Method: "equal"}
	e := newEngine(t, sizingConfig(), rebal, config.RiskConfig{MaxPositionPerSymbol: 10000}, book)
	now := time.Unix(1_700_000_000, 0)
	e.now = func() time.Time { return now }

	// First pass: the rebalance errors, balances stay skewed and the cooldown
	// window stays open.
	_, err := e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	require.InDelta(t, 10.0, book.Available("a", "USDT"), 1e-9)

	// Same clock tick: the retry is not blocked and equalizes the venues.
	_, err = e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 400.0, book.Available("a", "USDT"), 1e-9)
	assert.Equal(t, 2, book.calls)

	// The successful trigger started the cooldown; within it no third attempt
	// fires.
	book.ApplyDelta(ctx, "a", "USDT", -300)
	now = now.Add(30 * time.Second)
	_, err = e.SizeTrade(ctx, "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, book.calls)
}

func TestRiskCeilingClampsSize(t *testing.T) {
	book := seededLedger(1000)
	e := newEngine(t, sizingConfig(), config.RebalancingConfig{}, config.RiskConfig{MaxPositionPerSymbol: 200}, book)

	size, err := e.SizeTrade(context.Background(), "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, size, 1e-9)
}

func TestMarketCostBounds(t *testing.T) {
	book := seededLedger(40)
	e := newEngine(t, sizingConfig(), config.RebalancingConfig{}, config.RiskConfig{MaxPositionPerSymbol: 1000}, book)
	e.markets = &fakeMarkets{markets: map[string]domain.Market{
		"a": {Symbol: "BTC/USDT", MinCost: 25, MaxCost: 5000},
	}}

	// prefund: min(20, 20) = 20, raised to the venue minimum cost.
	size, err := e.SizeTrade(context.Background(), "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, size, 1e-9)
}

func TestZeroCapitalSizesToZero(t *testing.T) {
	book := seededLedger(0)
	e := newEngine(t, sizingConfig(), config.RebalancingConfig{}, config.RiskConfig{MaxPositionPerSymbol: 1000}, book)

	size, err := e.SizeTrade(context.Background(), "BTC/USDT", "a", "b", 100)
	require.NoError(t, err)
	assert.Zero(t, size)
}
