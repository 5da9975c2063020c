package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/auth"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/config"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/metrics"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/news"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/quote"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/store"
	"github.com/afeef-allahbaksh/Stock-Market-Simulation/internal/trade"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Postgres.URL != "" {
		if cfg.Postgres.Migrate {
			if err := store.Migrate(ctx, cfg.Postgres.URL); err != nil {
				slog.Error("database migration failed", "err", err)
				os.Exit(1)
			}
		}

		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Redis.URL != "" {
			opt, err := redis.ParseURL(cfg.Redis.URL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.Redis.TTL)
			slog.Info("Redis cache enabled", "ttl", cfg.Redis.TTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Quotes ---
	live := quote.NewAlphaVantage(cfg.Quotes.BaseURL, cfg.Quotes.APIKey, nil)
	if cfg.Quotes.APIKey == "" {
		slog.Warn("ALPHA_VANTAGE_API_KEY not set, every transaction will use a synthetic price")
	}
	lo, hi := cfg.FallbackRange()
	prices := quote.WithFallback(live, quote.NewSynthetic(lo, hi, nil), cfg.Quotes.Timeout)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run(ctx)

	// --- Services ---
	engine := trade.NewEngine(st, prices, trade.WithNotifier(wsHub))
	tradeSvc := trade.NewService(engine, live)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = randomSecret()
		slog.Warn("JWT_SECRET not set, generated an ephemeral secret (sessions end on restart)")
	}
	issuer, err := auth.NewIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		slog.Error("token issuer setup failed", "err", err)
		os.Exit(1)
	}
	authHandler := auth.NewHandler(st, issuer, cfg.Auth.CookieName, cfg.StartingBalanceValue())
	requireUser := auth.RequireUser(issuer, cfg.Auth.CookieName)

	newsClient := news.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.Limit, nil)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// WebSocket feed; long-lived, so outside the request timeout.
	r.Get("/api/ws", wsHub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

		// Accounts.
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireUser).Post("/changepassword", authHandler.ChangePassword)

		r.Route("/api", func(r chi.Router) {
			// Public market data.
			r.Get("/status", tradeSvc.Status)
			r.Get("/news", news.Handler(newsClient))

			r.Group(func(r chi.Router) {
				r.Use(requireUser)

				r.Get("/stock/{symbol}", tradeSvc.GetStock)

				// Transaction execution.
				r.Post("/transactions", tradeSvc.ExecuteTransaction)
				r.Post("/transaction", tradeSvc.ExecuteTransaction)
				r.Post("/invest", tradeSvc.Invest)

				// Projections.
				r.Get("/balance", tradeSvc.GetBalance)
				r.Get("/portfolio", tradeSvc.GetPortfolio)
				r.Get("/portfolio/reconcile", tradeSvc.Reconcile)
				r.Get("/transaction-history", tradeSvc.GetHistory)
				r.Get("/purchase-history", tradeSvc.GetPurchaseHistory)
			})
		})
	})

	if cfg.HTTP.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.HTTP.StaticDir)))
		slog.Info("serving static assets", "dir", cfg.HTTP.StaticDir)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		slog.Info("stock simulator listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	slog.Info("shutting down stock simulator...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("stock simulator stopped")
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}
