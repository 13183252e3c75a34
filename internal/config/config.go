// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/greentrades/arbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`
	// QuoteAsset is the quote currency every tracked pair is priced in.
	QuoteAsset string `toml:"quote_asset"`

	Venues      []VenueConfig     `toml:"venues"`
	Symbols     SymbolsConfig     `toml:"symbols"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Sizing      SizingConfig      `toml:"sizing"`
	Balance     BalanceConfig     `toml:"balance"`
	Risk        RiskConfig        `toml:"risk"`
	Rebalancing RebalancingConfig `toml:"rebalancing"`
	Orderbook   OrderbookConfig   `toml:"orderbook"`
	Order       OrderConfig       `toml:"order"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Notify      NotifyConfig      `toml:"notify"`
}

// VenueConfig describes one exchange connection.
type VenueConfig struct {
	ID      string `toml:"id"`
	Adapter string `toml:"adapter"` // only "binance" (and compatible REST APIs) today
	Enabled bool   `toml:"enabled"`

	ApiKey    string `toml:"api_key"`
	ApiSecret string `toml:"api_secret"`
	// EncryptedSecretPath points to a JSON blob produced by the key manager.
	// When set, the secret is decrypted with SecretPassword at startup.
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`

	BaseURL string `toml:"base_url"`
	WsURL   string `toml:"ws_url"`
}

// SymbolsConfig lists the coins the scanner tracks.
type SymbolsConfig struct {
	// Priority is the ordered coin list; the scanner evaluates the first
	// MaxTracked entries.
	Priority   []string `toml:"priority"`
	MaxTracked int      `toml:"max_tracked"`
}

// StrategyConfig holds the spot-arbitrage parameters.
type StrategyConfig struct {
	MinSpreadPercent float64 `toml:"min_spread_percent"`
	// MinTradeNotional is the absolute quote-asset floor below which a
	// sized trade is rejected.
	MinTradeNotional float64 `toml:"min_trade_notional"`
	// AllowNegativeTrades controls whether a paper trade whose projected
	// net profit is non-positive is still recorded (true) or rejected.
	AllowNegativeTrades bool    `toml:"allow_negative_trades"`
	DefaultFeeRate      float64 `toml:"default_fee_rate"`
	DefaultSlippage     float64 `toml:"default_slippage"`
	ScanIntervalSec     float64 `toml:"scan_interval_seconds"`
}

// SizingConfig selects and tunes the trade sizing model.
type SizingConfig struct {
	// Model is "prefund_split" or "simple".
	Model string `toml:"model"`
	// QuoteRatio is the share of a venue's capital assumed pre-allocated to
	// the quote asset; CoinRatio the share assumed held as coins
	// (quote-equivalent value).
	QuoteRatio  float64 `toml:"quote_ratio"`
	CoinRatio   float64 `toml:"coin_ratio"`
	Utilization float64 `toml:"utilization"`
	// TradeBalanceFraction scales the computed size once, clamped to (0, 1].
	TradeBalanceFraction float64 `toml:"trade_balance_fraction"`
}

// BalanceConfig holds per-mode balance parameters.
type BalanceConfig struct {
	Paper PaperBalanceConfig `toml:"paper"`
	Live  LiveBalanceConfig  `toml:"live"`
}

// PaperBalanceConfig seeds the simulated ledger.
type PaperBalanceConfig struct {
	Total float64 `toml:"total"`
	// PerVenue overrides the even split when > 0.
	PerVenue float64 `toml:"per_venue"`
}

// LiveBalanceConfig shapes how venue-reported balances are interpreted.
type LiveBalanceConfig struct {
	MinReservePerVenue float64 `toml:"min_reserve_per_venue"`
	UsePercentage      bool    `toml:"use_percentage"`
	Percentage         float64 `toml:"percentage"`
	// MaxTotalUsage is advisory: exceeding it is logged, never enforced.
	MaxTotalUsage float64 `toml:"max_total_usage"`
}

// RiskConfig holds the risk ceilings and the daily-counter reset rule.
type RiskConfig struct {
	MaxPositionPerSymbol float64 `toml:"max_position_per_symbol"`
	MaxDailyLoss         float64 `toml:"max_daily_loss"`
	MaxDailyTrades       int     `toml:"max_daily_trades"`
	// ResetPolicy is "none" (process lifetime), "calendar" (UTC midnight)
	// or "rolling" (24h window).
	ResetPolicy string `toml:"reset_policy"`
}

// RebalancingConfig tunes the auto-rebalance trigger.
type RebalancingConfig struct {
	Enabled          bool    `toml:"enabled"`
	MinTradeTrigger  float64 `toml:"min_trade_trigger"`
	CooldownSec      float64 `toml:"cooldown_seconds"`
	PaperSettleSec   float64 `toml:"paper_settle_seconds"`
	LiveSettleSec    float64 `toml:"live_settle_seconds"`
	Method           string  `toml:"method"`
}

// OrderbookConfig tunes the market-data cache.
type OrderbookConfig struct {
	CacheTTLSec        float64 `toml:"cache_ttl_seconds"`
	ScanDepth          int     `toml:"scan_depth"`
	SlippageDepth      int     `toml:"slippage_depth"`
	Prewarm            bool    `toml:"prewarm"`
	PrewarmIntervalSec float64 `toml:"prewarm_interval_seconds"`
	// WsFeed enables the websocket partial-depth stream that keeps the
	// cache warm without REST polling.
	WsFeed bool `toml:"ws_feed"`
}

// OrderConfig tunes live order handling.
type OrderConfig struct {
	FillTimeoutSec  float64 `toml:"fill_timeout_seconds"`
	PollIntervalMs  int     `toml:"poll_interval_ms"`
	BuyPricePadding float64 `toml:"buy_price_padding"`
	SellPricePadding float64 `toml:"sell_price_padding"`
}

// RedisConfig holds Redis connection parameters. Redis is optional; an empty
// Addr disables it.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	// MirrorBooks publishes cached order-book snapshots to Redis for
	// external observers.
	MirrorBooks bool `toml:"mirror_books"`
}

// PostgresConfig holds trade-history store parameters. Postgres is optional;
// an empty DSN and Host disables it.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// NotifyConfig holds notification channel parameters.
type NotifyConfig struct {
	Events            []string `toml:"events"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	// TelegramCommands enables the remote-control command poller.
	TelegramCommands  bool   `toml:"telegram_commands"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// Defaults returns a Config pre-populated with sane defaults. Load merges the
// TOML file on top of this.
func Defaults() Config {
	return Config{
		Mode:       string(domain.ModePaper),
		LogLevel:   "info",
		QuoteAsset: "USDT",
		Symbols: SymbolsConfig{
			MaxTracked: 10,
		},
		Strategy: StrategyConfig{
			MinSpreadPercent:    0.8,
			MinTradeNotional:    10.0,
			AllowNegativeTrades: true,
			DefaultFeeRate:      0.001,
			DefaultSlippage:     0.002,
			ScanIntervalSec:     10,
		},
		Sizing: SizingConfig{
			Model:                "prefund_split",
			QuoteRatio:           0.5,
			CoinRatio:            0.5,
			Utilization:          1.0,
			TradeBalanceFraction: 1.0,
		},
		Balance: BalanceConfig{
			Paper: PaperBalanceConfig{Total: 1000},
			Live:  LiveBalanceConfig{Percentage: 100},
		},
		Risk: RiskConfig{
			MaxPositionPerSymbol: 200,
			MaxDailyLoss:         50,
			MaxDailyTrades:       100,
			ResetPolicy:          "none",
		},
		Rebalancing: RebalancingConfig{
			MinTradeTrigger: 10,
			CooldownSec:     60,
			PaperSettleSec:  3,
			LiveSettleSec:   30,
			Method:          "equal",
		},
		Orderbook: OrderbookConfig{
			CacheTTLSec:        2.0,
			ScanDepth:          5,
			SlippageDepth:      20,
			PrewarmIntervalSec: 5.0,
		},
		Order: OrderConfig{
			FillTimeoutSec:   10,
			PollIntervalMs:   500,
			BuyPricePadding:  0.001,
			SellPricePadding: 0.001,
		},
	}
}

// EnabledVenues returns the venue configs with Enabled set.
func (c *Config) EnabledVenues() []VenueConfig {
	out := make([]VenueConfig, 0, len(c.Venues))
	for _, v := range c.Venues {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out
}

// Validate checks the configuration-class invariants that must abort startup.
func (c *Config) Validate() error {
	mode := domain.Mode(strings.ToLower(strings.TrimSpace(c.Mode)))
	if !mode.Valid() {
		return fmt.Errorf("config: unsupported mode %q (want %q or %q)", c.Mode, domain.ModePaper, domain.ModeLive)
	}

	enabled := c.EnabledVenues()
	if len(enabled) == 0 {
		return fmt.Errorf("config: no venues enabled")
	}
	seen := make(map[string]bool, len(enabled))
	for _, v := range enabled {
		id := strings.TrimSpace(v.ID)
		if id == "" {
			return fmt.Errorf("config: venue with empty id")
		}
		if seen[id] {
			return fmt.Errorf("config: duplicate venue id %q", id)
		}
		seen[id] = true
		if v.Adapter == "" {
			return fmt.Errorf("config: venue %q has no adapter", id)
		}
		if mode == domain.ModeLive && v.ApiKey == "" {
			return fmt.Errorf("config: venue %q needs api_key in live mode", id)
		}
	}
	if len(enabled) < 2 {
		return fmt.Errorf("config: cross-venue arbitrage requires at least 2 enabled venues, got %d", len(enabled))
	}

	if len(c.Symbols.Priority) == 0 {
		return fmt.Errorf("config: symbols.priority is empty")
	}
	if c.Strategy.MinSpreadPercent < 0 {
		return fmt.Errorf("config: strategy.min_spread_percent must be >= 0")
	}
	if c.Sizing.Model != "prefund_split" && c.Sizing.Model != "simple" {
		return fmt.Errorf("config: unknown sizing model %q", c.Sizing.Model)
	}
	if c.Sizing.QuoteRatio < 0 || c.Sizing.CoinRatio < 0 {
		return fmt.Errorf("config: sizing ratios must be >= 0")
	}
	if mode == domain.ModePaper && c.Balance.Paper.Total <= 0 && c.Balance.Paper.PerVenue <= 0 {
		return fmt.Errorf("config: balance.paper.total must be > 0 in paper mode")
	}
	switch c.Risk.ResetPolicy {
	case "none", "calendar", "rolling":
	default:
		return fmt.Errorf("config: unknown risk.reset_policy %q", c.Risk.ResetPolicy)
	}
	return nil
}
