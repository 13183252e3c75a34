// Package risk gates trade execution on accumulated daily loss and trade
// count.
package risk

import (
	"log/slog"
	"sync"
	"time"

	"github.com/greentrades/arbot/internal/config"
)

// Manager tracks the daily loss and trade counters. The reset policy decides
// when "daily" rolls over: never (process lifetime), at UTC midnight, or on a
// rolling 24h window since the first recorded trade.
type Manager struct {
	cfg    config.RiskConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	dailyLoss   float64
	dailyTrades int
	windowStart time.Time
}

// New builds a risk manager with zeroed counters.
func New(cfg config.RiskConfig, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk")),
		now:    time.Now,
	}
}

// CanTrade reports whether another trade is allowed right now. A ceiling of
// zero or below disables that check.
func (m *Manager) CanTrade() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeReset()

	if m.cfg.MaxDailyLoss > 0 && m.dailyLoss >= m.cfg.MaxDailyLoss {
		m.logger.Warn("daily loss limit reached",
			slog.Float64("loss", m.dailyLoss),
			slog.Float64("limit", m.cfg.MaxDailyLoss),
		)
		return false
	}
	if m.cfg.MaxDailyTrades > 0 && m.dailyTrades >= m.cfg.MaxDailyTrades {
		m.logger.Warn("daily trade limit reached",
			slog.Int("trades", m.dailyTrades),
			slog.Int("limit", m.cfg.MaxDailyTrades),
		)
		return false
	}
	return true
}

// RecordResult folds one trade outcome into the counters. The trade counter
// increments unconditionally; only negative net profit feeds the loss
// accumulator.
func (m *Manager) RecordResult(netProfit float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeReset()

	if m.windowStart.IsZero() {
		m.windowStart = m.now()
	}
	m.dailyTrades++
	if netProfit < 0 {
		m.dailyLoss += -netProfit
	}
}

// maybeReset zeroes the counters when the configured window has rolled over.
// Caller holds the mutex.
func (m *Manager) maybeReset() {
	if m.windowStart.IsZero() {
		return
	}
	now := m.now()
	var rollover bool
	switch m.cfg.ResetPolicy {
	case "calendar":
		y1, mo1, d1 := m.windowStart.UTC().Date()
		y2, mo2, d2 := now.UTC().Date()
		rollover = y1 != y2 || mo1 != mo2 || d1 != d2
	case "rolling":
		rollover = now.Sub(m.windowStart) >= 24*time.Hour
	default: // "none"
		return
	}
	if rollover {
		m.logger.Info("daily risk counters reset",
			slog.Int("trades", m.dailyTrades),
			slog.Float64("loss", m.dailyLoss),
		)
		m.dailyLoss = 0
		m.dailyTrades = 0
		m.windowStart = now
	}
}

// Snapshot returns the current counters for status reporting.
func (m *Manager) Snapshot() (loss float64, trades int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeReset()
	return m.dailyLoss, m.dailyTrades
}
