package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXDASH_* environment variable overrides, and
// returns the final Config. A missing file is not an error; the defaults are
// used as-is. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "DEXDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXDASH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DEXDASH_SERVER_API_KEY")
	setDuration(&cfg.Server.BroadcastInterval, "DEXDASH_SERVER_BROADCAST_INTERVAL")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "DEXDASH_STORAGE_BACKEND")
	setStr(&cfg.Storage.DataDir, "DEXDASH_STORAGE_DATA_DIR")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEXDASH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXDASH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXDASH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXDASH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXDASH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXDASH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXDASH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXDASH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXDASH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXDASH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "DEXDASH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "DEXDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXDASH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXDASH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEXDASH_REDIS_TLS_ENABLED")

	// ── Market ──
	setStr(&cfg.Market.CoinGeckoURL, "DEXDASH_MARKET_COINGECKO_URL")
	setStr(&cfg.Market.APIKey, "DEXDASH_MARKET_API_KEY")
	setDuration(&cfg.Market.RequestTimeout, "DEXDASH_MARKET_REQUEST_TIMEOUT")
	setDuration(&cfg.Market.PriceCacheTTL, "DEXDASH_MARKET_PRICE_CACHE_TTL")
	setDuration(&cfg.Market.GlobalCacheTTL, "DEXDASH_MARKET_GLOBAL_CACHE_TTL")
	setStringSlice(&cfg.Market.DefaultTokens, "DEXDASH_MARKET_DEFAULT_TOKENS")

	// ── Dex ──
	setStr(&cfg.Dex.OneInchURL, "DEXDASH_DEX_ONEINCH_URL")
	setStr(&cfg.Dex.APIKey, "DEXDASH_DEX_API_KEY")
	setInt(&cfg.Dex.ChainID, "DEXDASH_DEX_CHAIN_ID")

	// ── Trading ──
	setFloat64(&cfg.Trading.InitialInvested, "DEXDASH_TRADING_INITIAL_INVESTED")
	setDuration(&cfg.Trading.SettlementDelay, "DEXDASH_TRADING_SETTLEMENT_DELAY")

	// ── Rate limit ──
	setBool(&cfg.RateLimit.Enabled, "DEXDASH_RATE_LIMIT_ENABLED")
	setDuration(&cfg.RateLimit.Window, "DEXDASH_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.General, "DEXDASH_RATE_LIMIT_GENERAL")
	setInt(&cfg.RateLimit.Trading, "DEXDASH_RATE_LIMIT_TRADING")
	setInt(&cfg.RateLimit.Market, "DEXDASH_RATE_LIMIT_MARKET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEXDASH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEXDASH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEXDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEXDASH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "DEXDASH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
