package core

// scheduler.go removes stale outputs from the storage directory.
//
// Converted files are meant to be downloaded once and then deleted. Files
// nobody collects would otherwise accumulate, so a background job purges
// anything older than the retention period. It runs once at start and then
// every Interval until its context is cancelled. A failed run is logged and
// retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// CleanupConfig controls the cleanup scheduler. Zero values select defaults.
type CleanupConfig struct {
	Retention time.Duration // Age after which outputs are deleted (default: 24h)
	Interval  time.Duration // How often to run (default: 1h)
}

const (
	DefaultCleanupRetention = 24 * time.Hour
	DefaultCleanupInterval  = time.Hour
)

func (c CleanupConfig) withDefaults() CleanupConfig {
	if c.Retention <= 0 {
		c.Retention = DefaultCleanupRetention
	}
	if c.Interval <= 0 {
		c.Interval = DefaultCleanupInterval
	}
	return c
}

// StartCleanupScheduler blocks, purging old outputs until ctx is done.
// Run it in its own goroutine.
func (s *Service) StartCleanupScheduler(ctx context.Context, cfg CleanupConfig) {
	cfg = cfg.withDefaults()
	slog.Info("cleanup scheduler started",
		"retention", cfg.Retention.String(),
		"interval", cfg.Interval.String(),
		"dir", s.store.Dir(),
	)

	s.RunCleanup(ctx, cfg.Retention)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.RunCleanup(ctx, cfg.Retention)
		}
	}
}

// RunCleanup performs one purge and returns the number of files removed.
func (s *Service) RunCleanup(ctx context.Context, retention time.Duration) int {
	if ctx.Err() != nil {
		return 0
	}

	start := time.Now()
	removed, err := s.store.Purge(start.Add(-retention))
	if err != nil {
		slog.Error("cleanup failed", "error", err, "removed", removed)
		return removed
	}

	if removed > 0 {
		slog.Info("purged stale outputs",
			"removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		slog.Debug("cleanup found nothing to purge")
	}
	return removed
}
