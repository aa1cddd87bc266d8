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

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/limitless/market-engine/internal/api"
	"github.com/limitless/market-engine/internal/bootstrap"
	"github.com/limitless/market-engine/internal/events"
	"github.com/limitless/market-engine/internal/metrics"
	"github.com/limitless/market-engine/internal/store"
	"github.com/limitless/market-engine/internal/token"
)

// defaultProgramID is the deployed program's address.
const defaultProgramID = "BADPqHQ6dqfb2KfHk1JiHzJNWScAfgB4SQyVP283mPuy"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	programIDStr := os.Getenv("PROGRAM_ID")
	if programIDStr == "" {
		programIDStr = defaultProgramID
	}
	programID, err := solana.PublicKeyFromBase58(programIDStr)
	if err != nil {
		slog.Error("invalid PROGRAM_ID", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			slog.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
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

	// --- Event sinks ---
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := api.NewWSHub()
	go wsHub.Run(hubCtx)

	publishers := events.Fanout{wsHub}
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		pub, err := events.NewNATSPublisher(natsURL)
		if err != nil {
			slog.Error("nats connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pub.Close)
		publishers = append(publishers, pub)
		slog.Info("publishing account events to NATS", "subject_prefix", events.SubjectPrefix)
	}

	// --- Bootstrap program ---
	tokens := token.NewService()
	program := bootstrap.NewProgram(programID, st, tokens, publishers)
	svc := api.NewService(program, st, tokens)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
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
		w.Write([]byte(`{"status":"ok","service":"market-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket feed of account events.
		r.Get("/ws", wsHub.HandleWS)

		// Initializers.
		r.Post("/vault/initialize", svc.InitializeVault)
		r.Post("/market/initialize", svc.InitializeMarket)
		r.Post("/market/reset", svc.ResetMarket)

		// Records.
		r.Get("/market", svc.GetMarket)
		r.Get("/vault", svc.GetVault)
		r.Get("/addresses", svc.GetAddresses)
		r.Get("/accounts", svc.ListAccounts)
		r.Get("/accounts/{address}", svc.GetAccount)

		if os.Getenv("DEV_FAUCET") == "true" {
			faucet := api.NewFaucet(st, tokens)
			r.Post("/dev/airdrop", faucet.Airdrop)
			r.Post("/dev/mints", faucet.CreateMint)
			slog.Warn("dev faucet enabled")
		}
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("market-engine listening", "port", port, "program_id", programID)
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

	slog.Info("shutting down market-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("market-engine stopped")
}
