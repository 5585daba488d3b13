package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/eguzmanz/dexdash/internal/domain"
	"github.com/eguzmanz/dexdash/internal/server/handler"
	"github.com/eguzmanz/dexdash/internal/server/middleware"
	"github.com/eguzmanz/dexdash/internal/server/ws"
)

// RateLimits holds the per-category request limits. A zero limit
// disables limiting for that category.
type RateLimits struct {
	Window  time.Duration
	General int
	Trading int
	Market  int
}

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimits  RateLimits
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Dashboard *handler.DashboardHandler
	Market    *handler.MarketHandler
	Trading   *handler.TradingHandler
	Portfolio *handler.PortfolioHandler
	Risk      *handler.RiskHandler
	Dex       *handler.DexHandler
}

// Server is the headless HTTP + WebSocket API server for the dashboard.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (CORS, logging, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil to disable rate limiting entirely.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	limit := func(category string, n int, next http.HandlerFunc) http.HandlerFunc {
		if limiter == nil || n <= 0 {
			return next
		}
		return middleware.RateLimit(limiter, category, n, cfg.RateLimits.Window)(next).ServeHTTP
	}
	general := func(next http.HandlerFunc) http.HandlerFunc {
		return limit("general", cfg.RateLimits.General, next)
	}
	trading := func(next http.HandlerFunc) http.HandlerFunc {
		return limit("trading", cfg.RateLimits.Trading, next)
	}
	market := func(next http.HandlerFunc) http.HandlerFunc {
		return limit("market", cfg.RateLimits.Market, next)
	}

	// Health check (no auth, no rate limit).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Dashboard aggregate.
	mux.HandleFunc("GET /api/dashboard/stats", general(handlers.Dashboard.Stats))

	// Market data endpoints.
	mux.HandleFunc("GET /api/market/prices", market(handlers.Market.Prices))
	mux.HandleFunc("GET /api/market/global", market(handlers.Market.Global))

	// Trading endpoints.
	mux.HandleFunc("GET /api/trading/portfolio", general(handlers.Trading.Portfolio))
	mux.HandleFunc("POST /api/trading/execute", trading(handlers.Trading.Execute))
	mux.HandleFunc("GET /api/trading/trades", general(handlers.Trading.Trades))
	mux.HandleFunc("GET /api/trading/stats", general(handlers.Trading.Stats))

	// Ledger endpoints.
	mux.HandleFunc("GET /api/portfolio/balances", general(handlers.Portfolio.Balances))
	mux.HandleFunc("POST /api/portfolio/add-funds", trading(handlers.Portfolio.AddFunds))

	// Risk endpoints. The emergency stop counts against the trading limit.
	mux.HandleFunc("GET /api/risk/health", general(handlers.Risk.Health))
	mux.HandleFunc("GET /api/risk/rules", general(handlers.Risk.GetRules))
	mux.HandleFunc("PUT /api/risk/rules", general(handlers.Risk.UpdateRules))
	mux.HandleFunc("POST /api/risk/emergency-stop", trading(handlers.Risk.EmergencyStop))

	// DEX aggregator endpoints.
	mux.HandleFunc("GET /api/dex/quote", market(handlers.Dex.Quote))
	mux.HandleFunc("GET /api/dex/tokens", market(handlers.Dex.Tokens))
	mux.HandleFunc("GET /api/dex/chains", general(handlers.Dex.Chains))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
