// Package config defines the top-level configuration for the dexdash backend
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by DEXDASH_* environment
// variables.
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Storage   StorageConfig    `toml:"storage"`
	Postgres  PostgresConfig   `toml:"postgres"`
	Redis     RedisConfig      `toml:"redis"`
	Market    MarketConfig     `toml:"market"`
	Dex       DexConfig        `toml:"dex"`
	Trading   TradingConfig    `toml:"trading"`
	Risk      domain.RiskRules `toml:"risk"`
	RateLimit RateLimitConfig  `toml:"rate_limit"`
	Notify    NotifyConfig     `toml:"notify"`
	LogLevel  string           `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port              int      `toml:"port"`
	CORSOrigins       []string `toml:"cors_origins"`
	APIKey            string   `toml:"api_key"` // empty disables authentication
	BroadcastInterval duration `toml:"broadcast_interval"`
}

// StorageConfig selects and configures the portfolio state store.
type StorageConfig struct {
	Backend string `toml:"backend"` // "file" or "postgres"
	DataDir string `toml:"data_dir"`
}

// PostgresConfig holds PostgreSQL connection parameters for the postgres
// storage backend.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled, the price
// cache, rate limiter, and event bus all run in-process.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// MarketConfig holds CoinGecko market-data parameters.
type MarketConfig struct {
	CoinGeckoURL   string   `toml:"coingecko_url"`
	APIKey         string   `toml:"api_key"` // optional demo API key
	RequestTimeout duration `toml:"request_timeout"`
	PriceCacheTTL  duration `toml:"price_cache_ttl"`
	GlobalCacheTTL duration `toml:"global_cache_ttl"`
	DefaultTokens  []string `toml:"default_tokens"`
}

// DexConfig holds 1inch aggregator parameters.
type DexConfig struct {
	OneInchURL string `toml:"oneinch_url"`
	APIKey     string `toml:"api_key"`
	ChainID    int    `toml:"chain_id"`
}

// TradingConfig holds portfolio seed data and execution parameters.
type TradingConfig struct {
	InitialInvested float64            `toml:"initial_invested"`
	SeedBalances    map[string]float64 `toml:"seed_balances"`
	// SettlementDelay > 0 switches the executor to simulated deferred
	// settlement: trades are applied as pending and completed after the
	// delay. Zero means synchronous settlement.
	SettlementDelay duration `toml:"settlement_delay"`
}

// RateLimitConfig holds per-category fixed-window request limits.
type RateLimitConfig struct {
	Enabled bool     `toml:"enabled"`
	Window  duration `toml:"window"`
	General int      `toml:"general"`
	Trading int      `toml:"trading"`
	Market  int      `toml:"market"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "5m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "30s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			CORSOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
			BroadcastInterval: duration{30 * time.Second},
		},
		Storage: StorageConfig{
			Backend: "file",
			DataDir: "data",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "dexdash",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Market: MarketConfig{
			CoinGeckoURL:   "https://api.coingecko.com/api/v3",
			RequestTimeout: duration{10 * time.Second},
			PriceCacheTTL:  duration{30 * time.Second},
			GlobalCacheTTL: duration{5 * time.Minute},
			DefaultTokens:  []string{"ethereum", "cardano", "solana", "polkadot", "chainlink"},
		},
		Dex: DexConfig{
			OneInchURL: "https://api.1inch.dev",
			ChainID:    1,
		},
		Trading: TradingConfig{
			InitialInvested: 10000,
			SeedBalances: map[string]float64{
				"usdt":      5000,
				"ethereum":  1.2,
				"cardano":   2500,
				"solana":    8.5,
				"polkadot":  150,
				"chainlink": 75,
			},
			SettlementDelay: duration{0},
		},
		Risk: domain.DefaultRiskRules(),
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  duration{time.Minute},
			General: 120,
			Trading: 20,
			Market:  60,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "trade_settled", "emergency_stop"},
		},
		LogLevel: "info",
	}
}

// validBackends enumerates the accepted values for Storage.Backend.
var validBackends = map[string]bool{
	"file":     true,
	"postgres": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.BroadcastInterval.Duration < 0 {
		errs = append(errs, "server: broadcast_interval must not be negative")
	}

	backend := strings.ToLower(c.Storage.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: file, postgres)", c.Storage.Backend))
	}
	if backend == "file" && c.Storage.DataDir == "" {
		errs = append(errs, "storage: data_dir must not be empty for the file backend")
	}

	if backend == "postgres" && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Market.CoinGeckoURL == "" {
		errs = append(errs, "market: coingecko_url must not be empty")
	}
	if len(c.Market.DefaultTokens) == 0 {
		errs = append(errs, "market: default_tokens must not be empty")
	}
	if c.Market.RequestTimeout.Duration <= 0 {
		errs = append(errs, "market: request_timeout must be positive")
	}

	if c.Trading.InitialInvested <= 0 {
		errs = append(errs, "trading: initial_invested must be > 0")
	}
	if c.Trading.SettlementDelay.Duration < 0 {
		errs = append(errs, "trading: settlement_delay must not be negative")
	}
	for token, amount := range c.Trading.SeedBalances {
		if amount < 0 {
			errs = append(errs, fmt.Sprintf("trading: seed balance for %q must not be negative", token))
		}
	}

	if c.Risk.MaxTradesPerHour < 1 {
		errs = append(errs, "risk: max_trades_per_hour must be >= 1")
	}
	if c.Risk.MinTimeBetweenTrades < 0 {
		errs = append(errs, "risk: min_time_between_trades must not be negative")
	}
	if c.Risk.MinTradeUSD.IsNegative() {
		errs = append(errs, "risk: min_trade_usd must not be negative")
	}
	if c.Risk.MinUSDTBalance.IsNegative() {
		errs = append(errs, "risk: min_usdt_balance must not be negative")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be positive when enabled")
		}
		if c.RateLimit.General < 1 || c.RateLimit.Trading < 1 || c.RateLimit.Market < 1 {
			errs = append(errs, "rate_limit: per-category limits must be >= 1 when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
