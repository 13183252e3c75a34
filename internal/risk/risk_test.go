package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greentrades/arbot/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLossLimitBlocksTrading(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyLoss: 50, MaxDailyTrades: 100, ResetPolicy: "none"}, testLogger())

	// Losses summing to exactly the configured max.
	for i := 0; i < 5; i++ {
		assert.True(t, m.CanTrade())
		m.RecordResult(-10)
	}
	assert.False(t, m.CanTrade())
}

func TestTradeCountLimitBlocksTrading(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyLoss: 1000, MaxDailyTrades: 3, ResetPolicy: "none"}, testLogger())

	for i := 0; i < 3; i++ {
		m.RecordResult(1.5)
	}
	assert.False(t, m.CanTrade())
}

func TestProfitDoesNotFeedLossAccumulator(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyLoss: 10, MaxDailyTrades: 100, ResetPolicy: "none"}, testLogger())

	m.RecordResult(100)
	m.RecordResult(-4)
	loss, trades := m.Snapshot()
	assert.Equal(t, 4.0, loss)
	assert.Equal(t, 2, trades)
	assert.True(t, m.CanTrade())
}

func TestZeroCeilingsDisableChecks(t *testing.T) {
	m := New(config.RiskConfig{ResetPolicy: "none"}, testLogger())

	m.RecordResult(-1e6)
	assert.True(t, m.CanTrade())
}

func TestRollingWindowReset(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyLoss: 50, MaxDailyTrades: 100, ResetPolicy: "rolling"}, testLogger())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.RecordResult(-60)
	assert.False(t, m.CanTrade())

	now = now.Add(23 * time.Hour)
	assert.False(t, m.CanTrade())

	now = now.Add(2 * time.Hour)
	assert.True(t, m.CanTrade())
	_, trades := m.Snapshot()
	assert.Zero(t, trades)
}

func TestCalendarReset(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyTrades: 1, ResetPolicy: "calendar"}, testLogger())
	now := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.RecordResult(-5)
	assert.False(t, m.CanTrade())

	// Crossing UTC midnight resets the counters even after minutes.
	now = time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	assert.True(t, m.CanTrade())
}

func TestNoneNeverResets(t *testing.T) {
	m := New(config.RiskConfig{MaxDailyTrades: 1, ResetPolicy: "none"}, testLogger())
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.RecordResult(2)
	now = now.Add(72 * time.Hour)
	assert.False(t, m.CanTrade())
}
