package bot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/executor"
	"github.com/greentrades/arbot/internal/ledger"
	"github.com/greentrades/arbot/internal/risk"
	"github.com/greentrades/arbot/internal/scanner"
	"github.com/greentrades/arbot/internal/venue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBooks struct {
	books map[string]*domain.OrderbookSnapshot // venue -> book
}

func (s *stubBooks) OrderBook(_ context.Context, venueID, _ string) *domain.OrderbookSnapshot {
	return s.books[venueID]
}

type stubSizer struct{ notional float64 }

func (s *stubSizer) SizeTrade(context.Context, string, string, string, float64) (float64, error) {
	return s.notional, nil
}

type stubVenues struct{ ids []string }

func (s *stubVenues) Venues() []string           { return s.ids }
func (s *stubVenues) Client(string) venue.Client { return nil }

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type recordingStore struct {
	mu      sync.Mutex
	results []domain.TradeResult
}

func (r *recordingStore) Insert(_ context.Context, res domain.TradeResult) error {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
	return nil
}

func (r *recordingStore) Recent(context.Context, int) ([]domain.TradeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TradeResult(nil), r.results...), nil
}

type fixture struct {
	bot      *Bot
	book     *ledger.SimLedger
	notifier *recordingNotifier
	store    *recordingStore
	riskMgr  *risk.Manager
}

func newFixture(t *testing.T, riskCfg config.RiskConfig) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Symbols.Priority = []string{"BTC"}
	cfg.Risk = riskCfg

	books := &stubBooks{books: map[string]*domain.OrderbookSnapshot{
		"a": {Asks: []domain.PriceLevel{{Price: 100, Size: 100}}, Bids: []domain.PriceLevel{{Price: 99.9, Size: 100}}},
		"b": {Asks: []domain.PriceLevel{{Price: 102.2, Size: 100}}, Bids: []domain.PriceLevel{{Price: 102, Size: 100}}},
	}}
	book := ledger.NewSim(1000, 0, []string{"a", "b"}, "USDT", testLogger())
	sc := scanner.New(cfg.Symbols, cfg.Strategy, cfg.QuoteAsset, books, &stubSizer{notional: 100}, []string{"a", "b"}, testLogger())
	exec := executor.New(cfg.Strategy, cfg.Order, domain.ModePaper, book, &noGateway{}, books, testLogger())
	riskMgr := risk.New(riskCfg, testLogger())
	notifier := &recordingNotifier{}
	store := &recordingStore{}

	b := New(cfg, sc, exec, riskMgr, book, &stubVenues{ids: []string{"a", "b"}}, notifier, store, testLogger())
	return &fixture{bot: b, book: book, notifier: notifier, store: store, riskMgr: riskMgr}
}

type noGateway struct{}

func (noGateway) Market(string, string) (domain.Market, bool) { return domain.Market{}, false }
func (noGateway) Client(string) venue.Client                  { return nil }
func (noGateway) FetchBalance(context.Context, string) (map[string]domain.AssetBalance, error) {
	return nil, nil
}

func TestCycleExecutesBestOpportunity(t *testing.T) {
	f := newFixture(t, config.RiskConfig{MaxDailyLoss: 1000, MaxDailyTrades: 100, ResetPolicy: "none"})

	f.bot.runCycle(context.Background())

	require.Len(t, f.store.results, 1)
	res := f.store.results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "BTC/USDT", res.Symbol)
	assert.True(t, f.notifier.has("trade_executed"))

	// The trade's net profit reached the risk counters.
	_, trades := f.riskMgr.Snapshot()
	assert.Equal(t, 1, trades)
}

func TestPausedCycleSkipsTrading(t *testing.T) {
	f := newFixture(t, config.RiskConfig{MaxDailyLoss: 1000, MaxDailyTrades: 100, ResetPolicy: "none"})

	f.bot.Pause()
	f.bot.runCycle(context.Background())
	assert.Empty(t, f.store.results)

	f.bot.Resume()
	f.bot.runCycle(context.Background())
	assert.Len(t, f.store.results, 1)
}

func TestRiskBlockPreventsExecution(t *testing.T) {
	f := newFixture(t, config.RiskConfig{MaxDailyTrades: 1, ResetPolicy: "none"})
	f.riskMgr.RecordResult(1)

	f.bot.runCycle(context.Background())
	assert.Empty(t, f.store.results)
	assert.True(t, f.notifier.has("risk_limit"))
}

func TestStatusReflectsState(t *testing.T) {
	f := newFixture(t, config.Defaults().Risk)

	st := f.bot.Status()
	assert.Equal(t, domain.ModePaper, st.Mode)
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.Venues)

	f.bot.Pause()
	assert.True(t, f.bot.Status().Paused)
}

func TestRunStopsOnStop(t *testing.T) {
	f := newFixture(t, config.Defaults().Risk)
	f.bot.cfg.Strategy.ScanIntervalSec = 0.01

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return f.bot.Status().Running }, time.Second, 5*time.Millisecond)
	f.bot.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestTriggerRebalanceEqualizesSimLedger(t *testing.T) {
	f := newFixture(t, config.Defaults().Risk)
	ctx := context.Background()
	f.book.ApplyDelta(ctx, "a", "USDT", 300) // a: 800, b: 500

	res, err := f.bot.TriggerRebalance(ctx)
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.InDelta(t, 650.0, f.book.Available("a", "USDT"), 1e-9)
	assert.InDelta(t, 650.0, f.book.Available("b", "USDT"), 1e-9)
}
