// Package bot drives the scan, select, risk-check, execute cycle and exposes
// the control surface the command channel uses.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/executor"
	"github.com/greentrades/arbot/internal/ledger"
	"github.com/greentrades/arbot/internal/risk"
	"github.com/greentrades/arbot/internal/scanner"
	"github.com/greentrades/arbot/internal/venue"
)

// heartbeatEvery is the cycle count between heartbeat log lines.
const heartbeatEvery = 10

// errorBackoff is how long a cycle sleeps after an unexpected failure before
// the loop continues.
const errorBackoff = 5 * time.Second

// VenueSource is the bot's view of the venue registry, used for the
// heartbeat and the status query.
type VenueSource interface {
	Venues() []string
	Client(venueID string) venue.Client
}

// Notifier receives operator-facing events. All calls are best-effort.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Bot owns the main control loop. One instance per process.
type Bot struct {
	cfg      config.Config
	mode     domain.Mode
	scanner  *scanner.Scanner
	exec     *executor.Executor
	riskMgr  *risk.Manager
	book     ledger.Ledger
	venues   VenueSource
	notifier Notifier
	store    domain.TradeStore // nil when persistence is disabled
	logger   *slog.Logger

	startedAt time.Time
	running   atomic.Bool
	paused    atomic.Bool
	cycles    atomic.Int64
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// New assembles the bot from its already-constructed parts. store and
// notifier may be nil.
func New(cfg config.Config, sc *scanner.Scanner, exec *executor.Executor, riskMgr *risk.Manager, book ledger.Ledger, venues VenueSource, notifier Notifier, store domain.TradeStore, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		mode:     domain.Mode(cfg.Mode),
		scanner:  sc,
		exec:     exec,
		riskMgr:  riskMgr,
		book:     book,
		venues:   venues,
		notifier: notifier,
		store:    store,
		logger:   logger.With(slog.String("component", "bot")),
		stopCh:   make(chan struct{}),
	}
}

// Run drives scan cycles until the context is cancelled or Stop is called.
// An in-flight cycle always finishes before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	b.startedAt = time.Now()
	b.running.Store(true)
	defer b.running.Store(false)

	interval := time.Duration(b.cfg.Strategy.ScanIntervalSec * float64(time.Second))
	b.logger.Info("bot started",
		slog.String("mode", string(b.mode)),
		slog.Duration("scan_interval", interval),
	)
	b.notify(ctx, "startup", "Bot started", fmt.Sprintf("mode=%s venues=%d", b.mode, len(b.venues.Venues())))

	for {
		if ctx.Err() != nil {
			b.logger.Info("bot stopped", slog.Int64("cycles", b.cycles.Load()))
			b.notify(context.Background(), "shutdown", "Bot stopped", fmt.Sprintf("after %d cycles", b.cycles.Load()))
			return ctx.Err()
		}
		b.runCycle(ctx)

		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
	}
}

// runCycle executes one scan cycle behind a panic boundary so an unexpected
// failure never kills the loop.
func (b *Bot) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("cycle panicked", slog.Any("panic", r))
			sleepCtx(ctx, errorBackoff)
		}
	}()

	n := b.cycles.Add(1)
	if n%heartbeatEvery == 0 {
		b.heartbeat(ctx)
	}
	if b.paused.Load() {
		return
	}

	opps := b.scanner.Scan(ctx)
	best := scanner.Best(opps)
	if best == nil {
		return
	}
	b.logger.Info("opportunity selected",
		slog.String("symbol", best.Symbol),
		slog.String("buy_venue", best.BuyVenue),
		slog.String("sell_venue", best.SellVenue),
		slog.Float64("spread_pct", best.SpreadPercent),
		slog.Float64("notional", best.ProposedNotional),
		slog.Int("candidates", len(opps)),
	)

	if !b.riskMgr.CanTrade() {
		b.notify(ctx, "risk_limit", "Trade blocked by risk limits", best.Symbol)
		return
	}

	res := b.exec.Execute(ctx, *best)
	b.riskMgr.RecordResult(res.NetProfit)
	b.report(ctx, res)
}

// report fans one trade result out to the notifier and the history store,
// both best-effort.
func (b *Bot) report(ctx context.Context, res domain.TradeResult) {
	switch {
	case res.Emergency:
		b.notify(ctx, "emergency", "EMERGENCY liquidation", fmt.Sprintf("%s: %s", res.Symbol, res.Error))
	case res.Success:
		b.notify(ctx, "trade_executed", "Trade executed",
			fmt.Sprintf("%s %s->%s net %.4f", res.Symbol, res.BuyVenue, res.SellVenue, res.NetProfit))
	default:
		b.notify(ctx, "trade_failed", "Trade failed", fmt.Sprintf("%s: %s", res.Symbol, res.Error))
	}

	if b.store != nil {
		if err := b.store.Insert(ctx, res); err != nil {
			b.logger.Warn("trade history insert failed",
				slog.String("trade_id", res.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// heartbeat logs a liveness line with one ticker per venue.
func (b *Bot) heartbeat(ctx context.Context) {
	symbol := ""
	if len(b.cfg.Symbols.Priority) > 0 {
		symbol = domain.NormalizeSymbol(b.cfg.Symbols.Priority[0], b.cfg.QuoteAsset)
	}
	attrs := []any{
		slog.Int64("cycle", b.cycles.Load()),
		slog.Float64("total_balance", b.book.Total()),
	}
	if symbol != "" {
		for _, venueID := range b.venues.Venues() {
			c := b.venues.Client(venueID)
			if c == nil {
				continue
			}
			tick, err := c.FetchTicker(ctx, symbol)
			if err != nil {
				continue
			}
			attrs = append(attrs, slog.Float64(venueID+"_last", tick.Last))
		}
	}
	b.logger.Info("heartbeat", attrs...)
}

func (b *Bot) notify(ctx context.Context, event, title, message string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, event, title, message); err != nil {
		b.logger.Debug("notification failed", slog.String("error", err.Error()))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
