package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/csv2xlsx/internal/config"
	"github.com/JonMunkholm/csv2xlsx/internal/core"
	"github.com/JonMunkholm/csv2xlsx/internal/history"
	"github.com/JonMunkholm/csv2xlsx/internal/logging"
	"github.com/JonMunkholm/csv2xlsx/internal/storage"
	"github.com/JonMunkholm/csv2xlsx/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	hist, pool, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up conversion history", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	store, err := storage.New(cfg.Storage.Dir)
	if err != nil {
		slog.Error("failed to open output directory", "dir", cfg.Storage.Dir, "error", err)
		os.Exit(1)
	}

	core.ConvertTimeout = cfg.Upload.Timeout
	limiter := core.NewConversionLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)

	service, err := core.NewService(core.ServiceConfig{
		Store:   store,
		History: hist,
		Limiter: limiter,
		Defaults: core.Options{
			Delimiter:    cfg.Convert.DelimiterValue(),
			Encoding:     cfg.Convert.Encoding,
			Engine:       cfg.Convert.Engine,
			AutoFitRows:  cfg.Convert.AutoFitRows,
			SanitizeUTF8: cfg.Convert.SanitizeUTF8,
			MaxLineBytes: cfg.Convert.MaxLineBytes,
		},
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if cfg.Cleanup.Enabled {
		go service.StartCleanupScheduler(jobCtx, core.CleanupConfig{
			Retention: cfg.Cleanup.Retention,
			Interval:  cfg.Cleanup.Interval,
		})
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for conversions to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			} else {
				slog.Info("all conversions completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openHistory returns a PostgreSQL-backed history when a database is
// configured and an in-memory one otherwise. The pool, if any, is returned
// for the caller to close.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, *pgxpool.Pool, error) {
	if !cfg.Database.Enabled() {
		slog.Info("no database configured, keeping history in memory", "capacity", cfg.History.Capacity)
		return history.NewMemoryHistory(cfg.History.Capacity), nil, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	hist := history.NewPgHistory(pool)
	if err := hist.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to database", "database", poolConfig.ConnConfig.Database)
	return hist, pool, nil
}
