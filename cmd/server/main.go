package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stakevault/staking-engine/internal/config"
	"github.com/stakevault/staking-engine/internal/metrics"
	"github.com/stakevault/staking-engine/internal/solvency"
	"github.com/stakevault/staking-engine/internal/staking"
	"github.com/stakevault/staking-engine/internal/store"
	"github.com/stakevault/staking-engine/internal/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
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

	// --- Token-transfer service ---
	// Stand-in bank; a production deployment backs token.Service with the
	// real asset layer.
	bank := token.NewMemoryBank()
	if cfg.OwnerAccount != "" {
		ctx := context.Background()
		if err := bank.CreateAccount(ctx, cfg.OwnerAccount, cfg.OwnerAccount); err != nil {
			slog.Error("owner account setup failed", "err", err)
			os.Exit(1)
		}
		if cfg.OwnerMint.IsPositive() {
			if err := bank.Mint(ctx, cfg.OwnerAccount, cfg.OwnerMint); err != nil {
				slog.Error("owner account funding failed", "err", err)
				os.Exit(1)
			}
		}
		slog.Info("owner account seeded", "account", cfg.OwnerAccount, "minted", cfg.OwnerMint.String())
	}

	// --- WebSocket hub ---
	hub := staking.NewHub()
	go hub.Run()

	// --- Staking service ---
	svc := staking.NewService(st, bank, hub)

	// --- Solvency reconciler ---
	reconciler := solvency.NewReconciler(st, bank)
	if err := reconciler.Start(cfg.ReconcileSchedule); err != nil {
		slog.Error("reconciler start failed", "err", err)
		os.Exit(1)
	}
	defer reconciler.Stop()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"staking-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time lifecycle events.
		r.Get("/ws", hub.HandleWS)

		// Pool management.
		r.Post("/pool", svc.HandleInitializePool)
		r.Put("/pool", svc.HandleUpdatePool)
		r.Get("/pool", svc.HandleGetPool)

		// Stake lifecycle.
		r.Post("/stake", svc.HandleStake)
		r.Post("/claim", svc.HandleClaimRewards)
		r.Post("/unstake", svc.HandleUnstake)

		// Queries.
		r.Get("/stakes/{owner}", svc.HandleGetStakeRecord)
		r.Get("/stakes/{owner}/transfers", svc.HandleGetTransfers)
		r.Get("/accounts/{account}/balance", svc.HandleGetBalance)

		// Development account faucet (in-memory bank only).
		r.Post("/accounts", svc.HandleFaucet)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("staking-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down staking-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("staking-engine stopped")
}
