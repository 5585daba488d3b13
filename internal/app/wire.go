package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eguzmanz/dexdash/internal/cache/memory"
	"github.com/eguzmanz/dexdash/internal/cache/redis"
	"github.com/eguzmanz/dexdash/internal/config"
	"github.com/eguzmanz/dexdash/internal/domain"
	"github.com/eguzmanz/dexdash/internal/events"
	"github.com/eguzmanz/dexdash/internal/notify"
	"github.com/eguzmanz/dexdash/internal/platform/coingecko"
	"github.com/eguzmanz/dexdash/internal/platform/oneinch"
	"github.com/eguzmanz/dexdash/internal/server"
	"github.com/eguzmanz/dexdash/internal/server/handler"
	"github.com/eguzmanz/dexdash/internal/server/ws"
	"github.com/eguzmanz/dexdash/internal/service"
	"github.com/eguzmanz/dexdash/internal/store/file"
	"github.com/eguzmanz/dexdash/internal/store/postgres"
)

// Dependencies bundles every component the application needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Infrastructure
	Store       domain.StateStore
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter // nil when rate limiting is disabled
	Bus         domain.EventBus

	// Services
	Oracle      *service.OracleService
	Portfolio   *service.PortfolioService
	Risk        *service.RiskService
	Trades      *service.TradeService
	Broadcaster *service.BroadcastService

	// Delivery
	Hub      *ws.Hub
	Notifier *notify.Notifier
	Server   *server.Server
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

	deps := &Dependencies{}

	// --- Redis-backed or in-process infrastructure ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.Bus = redis.NewEventBus(redisClient)
		if cfg.RateLimit.Enabled {
			deps.RateLimiter = redis.NewRateLimiter(redisClient)
		}
	} else {
		deps.PriceCache = memory.NewPriceCache()
		deps.Bus = events.NewBus()
		if cfg.RateLimit.Enabled {
			deps.RateLimiter = memory.NewRateLimiter()
		}
	}

	// --- Portfolio state store ---
	switch strings.ToLower(cfg.Storage.Backend) {
	case "postgres":
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
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Store = postgres.NewStateStore(pgClient.Pool())

	default:
		fileStore, err := file.NewStateStore(cfg.Storage.DataDir)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: file store: %w", err)
		}
		deps.Store = fileStore
	}

	// --- Services ---
	gecko := coingecko.NewClient(cfg.Market.CoinGeckoURL, cfg.Market.APIKey)
	deps.Oracle = service.NewOracleService(
		gecko,
		deps.PriceCache,
		cfg.Market.PriceCacheTTL.Duration,
		cfg.Market.GlobalCacheTTL.Duration,
		logger,
	)

	seed := service.PortfolioSeed{
		Balances:      make(map[string]decimal.Decimal, len(cfg.Trading.SeedBalances)),
		TotalInvested: decimal.NewFromFloat(cfg.Trading.InitialInvested),
	}
	for token, amount := range cfg.Trading.SeedBalances {
		seed.Balances[strings.ToLower(token)] = decimal.NewFromFloat(amount)
	}

	portfolio, err := service.NewPortfolioService(
		ctx,
		deps.Store,
		deps.Bus,
		seed,
		cfg.Trading.SettlementDelay.Duration,
		logger,
	)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: portfolio: %w", err)
	}
	deps.Portfolio = portfolio

	deps.Risk = service.NewRiskService(portfolio, cfg.Risk, logger)
	deps.Trades = service.NewTradeService(deps.Oracle, portfolio, deps.Risk, cfg.Market.DefaultTokens, logger)
	deps.Broadcaster = service.NewBroadcastService(
		deps.Oracle,
		portfolio,
		deps.Bus,
		cfg.Market.DefaultTokens,
		cfg.Server.BroadcastInterval.Duration,
		logger,
	)

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
	deps.Notifier = notify.NewNotifier(deps.Bus, senders, cfg.Notify.Events, logger)

	// --- HTTP server and WebSocket hub ---
	deps.Hub = ws.NewHub(deps.Bus, logger)

	dex := oneinch.NewClient(cfg.Dex.OneInchURL, cfg.Dex.APIKey)
	tokens := cfg.Market.DefaultTokens

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Oracle, portfolio, deps.Risk, tokens, logger),
		Dashboard: handler.NewDashboardHandler(deps.Oracle, portfolio, deps.Risk, tokens, logger),
		Market:    handler.NewMarketHandler(deps.Oracle, tokens, logger),
		Trading:   handler.NewTradingHandler(deps.Trades, deps.Oracle, portfolio, deps.Risk, tokens, logger),
		Portfolio: handler.NewPortfolioHandler(portfolio, logger),
		Risk:      handler.NewRiskHandler(deps.Risk, deps.Oracle, tokens, logger),
		Dex:       handler.NewDexHandler(dex, cfg.Dex.ChainID, logger),
	}

	srvCfg := server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
	}
	if cfg.RateLimit.Enabled {
		srvCfg.RateLimits = server.RateLimits{
			Window:  cfg.RateLimit.Window.Duration,
			General: cfg.RateLimit.General,
			Trading: cfg.RateLimit.Trading,
			Market:  cfg.RateLimit.Market,
		}
	}
	deps.Server = server.NewServer(srvCfg, handlers, deps.Hub, deps.RateLimiter, logger)

	return deps, cleanup, nil
}
