package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 30*time.Second, cfg.Market.PriceCacheTTL.Duration)
	// The client appends /swap/v6.0/<chain>/... itself, so the default
	// must be the bare API root.
	assert.Equal(t, "https://api.1inch.dev", cfg.Dex.OneInchURL)
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"

[server]
port = 9090
broadcast_interval = "5s"

[trading]
initial_invested = 25000.0
settlement_delay = "2s"

[trading.seed_balances]
usdt = 10000.0
ethereum = 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.BroadcastInterval.Duration)
	assert.Equal(t, 25000.0, cfg.Trading.InitialInvested)
	assert.Equal(t, 2*time.Second, cfg.Trading.SettlementDelay.Duration)
	assert.Equal(t, 2.5, cfg.Trading.SeedBalances["ethereum"])
	// Untouched sections keep defaults.
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.Market.CoinGeckoURL)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("DEXDASH_SERVER_PORT", "7070")
	t.Setenv("DEXDASH_REDIS_ENABLED", "true")
	t.Setenv("DEXDASH_MARKET_DEFAULT_TOKENS", "ethereum, solana")
	t.Setenv("DEXDASH_RATE_LIMIT_WINDOW", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"ethereum", "solana"}, cfg.Market.DefaultTokens)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window.Duration)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Storage.Backend = "sqlite"
	cfg.LogLevel = "verbose"
	cfg.Trading.InitialInvested = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be 1-65535")
	assert.Contains(t, err.Error(), `unknown backend "sqlite"`)
	assert.Contains(t, err.Error(), `unknown log_level "verbose"`)
	assert.Contains(t, err.Error(), "initial_invested must be > 0")
}

func TestValidatePostgresBackendRequiresConnection(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Backend = "postgres"
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host must not be empty")

	cfg.Postgres.DSN = "postgres://user:pass@db:5432/dexdash"
	require.NoError(t, cfg.Validate())
}
