package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowdash/internal/api"
	"flowdash/internal/auth"
	"flowdash/internal/config"
	"flowdash/internal/daemon"
	"flowdash/internal/db"
	"flowdash/internal/jobs"
	"flowdash/internal/pubsub"
	"flowdash/internal/service"
	"flowdash/internal/storage"
	"flowdash/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Check for migrate command
	if len(os.Args) > 1 && (os.Args[1] == "migrate" || os.Args[1] == "goose-migrate") {
		if err := db.Migrate(cfg.DatabaseURL, cfg.GooseMigrationsDir); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("Unknown command: %s (use 'serve' or 'migrate')", os.Args[1])
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis connection, only when something needs it
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	}

	kv, closeKV, err := openKV(ctx, cfg, rdb, logger)
	if err != nil {
		logger.Fatal("Failed to open state storage", zap.String("backend", cfg.StateBackend), zap.Error(err))
	}
	defer closeKV()

	// Pub/sub bus
	bus := pubsub.New(rdb, cfg.RedisPrefix, logger)

	// WebSocket hub
	hub := ws.NewHub(ctx, logger)
	if streams := bus.GetStreams(); streams != nil {
		hub.SetStreamsProvider(&wsStreamsAdapter{streams: streams})
	}
	go hub.Run()
	bus.SetWSHub(hub)

	prober := daemon.NewClient(cfg.DaemonTimeout, logger)
	opts := []service.Option{service.WithProber(prober)}

	// Background jobs
	var jobServer *jobs.JobServer
	if cfg.JobsEnabled {
		var jobClient *asynq.Client
		jobServer, jobClient = jobs.NewJobServer(cfg.RedisAddr, prober, logger)
		opts = append(opts, service.WithJobClient(service.NewAsynqJobClient(jobClient)))
	}

	editor := service.NewEditorService(ctx, storage.NewPersister(kv, logger), bus, logger, opts...)

	if jobServer != nil {
		jobServer.SetStatusSink(editor)
		go func() {
			if err := jobServer.Start(); err != nil {
				logger.Fatal("Job server failed", zap.Error(err))
			}
		}()
		defer jobServer.Stop()
	}

	hub.SetCommandHandler(ws.NewCommandHandler(editor, logger))

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Timeout middleware - skip for WebSocket upgrades
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(60 * time.Second)(next).ServeHTTP(w, req)
		})
	})

	r.Mount("/v1", api.Routes(api.Dependencies{
		Editor: editor,
		Hub:    hub,
		Log:    logger,
		Auth:   auth.NewJWTConfig(cfg.JWTSecret),
		Import: storage.DefaultImportPolicy(cfg.ImportMaxMB),
	}))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("Starting server",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.StateBackend),
		zap.Bool("jobs", cfg.JobsEnabled),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// openKV builds the key-value store selected by STATE_BACKEND. The returned
// func releases whatever the store holds open.
func openKV(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (storage.KV, func(), error) {
	noop := func() {}

	switch cfg.StateBackend {
	case config.BackendMemory:
		return storage.NewMemoryKV(), noop, nil
	case config.BackendFile:
		kv, err := storage.NewFileKV(cfg.StateDir)
		if err != nil {
			return nil, noop, err
		}
		return kv, noop, nil
	case config.BackendRedis:
		return storage.NewRedisKV(rdb, cfg.RedisPrefix), noop, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return storage.NewPostgresKV(pool.Queries), pool.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.StateBackend)
	}
}
