package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/greentrades/arbot/internal/bot"
	"github.com/greentrades/arbot/internal/cache/redis"
	"github.com/greentrades/arbot/internal/config"
	"github.com/greentrades/arbot/internal/crypto"
	"github.com/greentrades/arbot/internal/domain"
	"github.com/greentrades/arbot/internal/executor"
	"github.com/greentrades/arbot/internal/ledger"
	"github.com/greentrades/arbot/internal/marketdata"
	"github.com/greentrades/arbot/internal/notify"
	"github.com/greentrades/arbot/internal/risk"
	"github.com/greentrades/arbot/internal/scanner"
	"github.com/greentrades/arbot/internal/sizing"
	"github.com/greentrades/arbot/internal/store/postgres"
	"github.com/greentrades/arbot/internal/venue"
	"github.com/greentrades/arbot/internal/venue/binance"
)

// instanceLockTTL bounds how long a crashed process keeps the single-instance
// lock; the holder refreshes it in the background.
const instanceLockTTL = 30 * time.Second

// Dependencies bundles everything the application run loop needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *venue.Registry
	Book     ledger.Ledger
	Cache    *marketdata.Cache
	Bot      *bot.Bot

	TradeStore domain.TradeStore
	Notifier   *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	mode := domain.Mode(strings.ToLower(cfg.Mode))
	if !mode.Valid() {
		return fail(fmt.Errorf("wire: unsupported mode %q", cfg.Mode))
	}

	deps := &Dependencies{}

	// --- Venues ---
	clients, err := buildVenueClients(cfg, logger)
	if err != nil {
		return fail(err)
	}
	registry := venue.NewRegistry(clients, logger)
	if err := registry.LoadAll(ctx); err != nil {
		return fail(fmt.Errorf("wire: load markets: %w", err))
	}
	deps.Registry = registry
	venues := registry.Venues()
	if len(venues) < 2 {
		return fail(fmt.Errorf("wire: need at least 2 venues, have %d", len(venues)))
	}

	// --- Redis (optional: instance lock and book mirror) ---
	var mirror marketdata.Mirror
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		// Two bots trading the same capital is worse than no bot.
		release, err := redis.NewLockManager(redisClient).AcquireInstanceLock(ctx, instanceLockTTL)
		if err != nil {
			return fail(fmt.Errorf("wire: instance lock: %w", err))
		}
		closers = append(closers, release)

		if cfg.Redis.MirrorBooks {
			mirror = redis.NewBookMirror(redisClient, logger)
		}
	}

	// --- Postgres (optional: trade history) ---
	if cfg.Postgres.DSN != "" || cfg.Postgres.Host != "" {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("wire: postgres migrations: %w", err))
		}
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- Market data cache ---
	ttl := time.Duration(cfg.Orderbook.CacheTTLSec * float64(time.Second))
	cache := marketdata.New(registry, ttl, cfg.Orderbook.SlippageDepth, logger)
	if mirror != nil {
		cache.SetMirror(mirror)
	}
	deps.Cache = cache

	// --- Ledger ---
	var book ledger.Ledger
	switch mode {
	case domain.ModeLive:
		live := ledger.NewLive(cfg.Balance.Live, registry, venues, cfg.QuoteAsset, logger)
		if err := live.Refresh(ctx); err != nil {
			return fail(fmt.Errorf("wire: initial balance fetch: %w", err))
		}
		book = live
	default:
		book = ledger.NewSim(cfg.Balance.Paper.Total, cfg.Balance.Paper.PerVenue, venues, cfg.QuoteAsset, logger)
	}
	deps.Book = book

	// --- Trading pipeline ---
	sizer := sizing.New(cfg.Sizing, cfg.Rebalancing, cfg.Risk, mode, cfg.QuoteAsset, book, registry, logger)
	sc := scanner.New(cfg.Symbols, cfg.Strategy, cfg.QuoteAsset, cache, sizer, venues, logger)
	exec := executor.New(cfg.Strategy, cfg.Order, mode, book, registry, cache, logger)
	riskMgr := risk.New(cfg.Risk, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	deps.Bot = bot.New(*cfg, sc, exec, riskMgr, book, registry, deps.Notifier, deps.TradeStore, logger)

	return deps, cleanup, nil
}

// buildVenueClients resolves credentials and builds an adapter client for
// every enabled venue.
func buildVenueClients(cfg *config.Config, logger *slog.Logger) ([]venue.Client, error) {
	enabled := cfg.EnabledVenues()
	clients := make([]venue.Client, 0, len(enabled))
	for _, vc := range enabled {
		secret, err := crypto.LoadSecret(crypto.SecretConfig{
			RawSecret:           vc.ApiSecret,
			EncryptedSecretPath: vc.EncryptedSecretPath,
			Password:            vc.SecretPassword,
		})
		if err != nil && (vc.EncryptedSecretPath != "" || vc.ApiSecret != "") {
			return nil, fmt.Errorf("wire: venue %s secret: %w", vc.ID, err)
		}

		switch strings.ToLower(vc.Adapter) {
		case "", "binance":
			clients = append(clients, binance.New(binance.Config{
				ID:        vc.ID,
				ApiKey:    vc.ApiKey,
				ApiSecret: secret,
				BaseURL:   vc.BaseURL,
				WsURL:     vc.WsURL,
			}, logger))
		default:
			return nil, fmt.Errorf("wire: venue %s: unknown adapter %q", vc.ID, vc.Adapter)
		}
	}
	return clients, nil
}
