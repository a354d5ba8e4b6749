// Package main is the entry point for the Rainbowcast API server.
//
// It loads configuration, builds the prediction pipeline (model provider,
// feature transformer, cache, history store), wires the HTTP chassis, and
// serves until interrupted. Graceful shutdown is handled via OS signal
// interception (SIGINT, SIGTERM).
//
// The database and Redis are optional dependencies: when unconfigured or
// unreachable at startup, the server still serves predictions and reports the
// missing subsystem through /health and per-result warnings.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rainbowcast/internal/api/handlers"
	"rainbowcast/internal/cache"
	"rainbowcast/internal/config"
	"rainbowcast/internal/core"
	"rainbowcast/internal/db"
	"rainbowcast/internal/features"
	"rainbowcast/internal/model"
	"rainbowcast/internal/prediction"
	"rainbowcast/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("rainbowcast API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	clock := types.RealClock{}

	// Model: loading must succeed at startup. Serving without a model would
	// turn every prediction into a 503.
	provider := model.NewProvider(cfg.Model.Path, logger)
	provider.DefaultThreshold = cfg.Prediction.Threshold
	if err := provider.Load(); err != nil {
		return fmt.Errorf("loading model artifact: %w", err)
	}

	rootCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()

	if cfg.Model.WatchReload {
		if err := provider.Watch(rootCtx); err != nil {
			logger.Warn("model hot reload disabled", "error", err)
		}
	}

	// Database: optional.
	var pool *pgxpool.Pool
	var history prediction.HistoryStore
	if cfg.Database.URL != "" {
		startCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		pool, err = db.NewPool(startCtx, cfg.Database)
		cancel()
		if err != nil {
			logger.Warn("database unavailable, prediction history disabled", "error", err)
		} else {
			history = db.NewPredictionRepository(pool)
		}
	} else {
		logger.Info("DATABASE_URL not set, prediction history disabled")
	}

	// Cache: optional. The client is created unconditionally; connection
	// failures surface as degraded lookups behind the circuit breaker.
	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.Cache.Addr,
		Password:    cfg.Cache.Password,
		DB:          cfg.Cache.DB,
		DialTimeout: cfg.Cache.DialTimeout,
		ReadTimeout: cfg.Cache.ReadTimeout,
	})
	redisStore := cache.NewRedisStore(redisClient)
	predictionCache := cache.NewPredictionCache(redisStore, cfg.Cache.TTL, logger, clock)

	transformer := features.NewTransformer(clock)
	engine := prediction.NewEngine(provider, transformer, logger, clock)
	service := prediction.NewService(engine, predictionCache, history, nil, cfg.Prediction, logger, clock)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	predictionHandler := handlers.NewPredictionHandler(
		service,
		srv.Validator,
		cfg.Prediction.MaxBatchSize,
		cfg.Prediction.MaxForecastHours,
		logger,
	)
	modelHandler := handlers.NewModelHandler(provider, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		predictionHandler.RegisterRoutes,
		modelHandler.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "model",
		Fn: func(ctx context.Context) error {
			_, err := provider.Current()
			return err
		},
	})
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "cache",
		Fn:        redisStore.Ping,
	})
	if pool != nil {
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		})
	}

	srv.OnShutdown(func(ctx context.Context) error {
		stopWatch()
		if pool != nil {
			pool.Close()
		}
		return redisClient.Close()
	})

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
