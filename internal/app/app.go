// Package app provides the top-level application lifecycle for the arbitrage
// bot. It wires together all dependencies (venues, ledger, market data,
// scanner, executor, persistence, and notifications) and runs the trading
// loop together with its supporting goroutines.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/notify"
	"github.com/greentrades/arbot/internal/venue/binance"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the bot loop
// and its supporting goroutines, and blocks until the context is cancelled or
// the bot stops. On return the caller should invoke Close.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Trading loop.
	g.Go(func() error {
		return deps.Bot.Run(ctx)
	})

	symbols := a.trackedSymbols()
	venues := deps.Registry.Venues()

	// Book prewarmer keeps the cache fresh between scan cycles.
	if a.cfg.Orderbook.Prewarm {
		interval := time.Duration(a.cfg.Orderbook.PrewarmIntervalSec * float64(time.Second))
		if interval <= 0 {
			interval = 2 * time.Second
		}
		g.Go(func() error {
			deps.Cache.Prewarm(ctx, venues, symbols, interval)
			return ctx.Err()
		})
	}

	// Websocket depth feeds push book snapshots straight into the cache.
	if a.cfg.Orderbook.WsFeed {
		for _, vc := range a.cfg.EnabledVenues() {
			feed := binance.NewDepthFeed(vc.ID, vc.WsURL, symbols, deps.Cache, a.logger)
			g.Go(func() error {
				return feed.Run(ctx)
			})
		}
	}

	// Telegram remote control.
	if a.cfg.Notify.TelegramCommands && a.cfg.Notify.TelegramToken != "" && a.cfg.Notify.TelegramChatID != "" {
		listener := notify.NewCommandListener(
			a.cfg.Notify.TelegramToken,
			a.cfg.Notify.TelegramChatID,
			deps.Bot,
			a.logger,
		)
		g.Go(func() error {
			return listener.Run(ctx)
		})
	}

	return g.Wait()
}

// trackedSymbols returns the normalized pair list the bot trades, honoring
// the max_tracked cap.
func (a *App) trackedSymbols() []string {
	priority := a.cfg.Symbols.Priority
	if a.cfg.Symbols.MaxTracked > 0 && len(priority) > a.cfg.Symbols.MaxTracked {
		priority = priority[:a.cfg.Symbols.MaxTracked]
	}
	symbols := make([]string, 0, len(priority))
	for _, coin := range priority {
		if s := domain.NormalizeSymbol(coin, a.cfg.QuoteAsset); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
