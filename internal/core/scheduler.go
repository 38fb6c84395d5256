package core

// scheduler.go runs background maintenance for the export directory.
//
// Export files are written for a single download and are not tracked after
// the response is sent. The janitor removes export files older than the
// retention period. It runs once on start, then on every tick, and stops
// when its context is cancelled. A failed pass is logged and retried on the
// next tick.

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JanitorConfig holds the settings for the export janitor.
type JanitorConfig struct {
	Dir           string        // Directory holding export files
	Retention     time.Duration // Files older than this are removed (default: 1h)
	CheckInterval time.Duration // How often to run (default: 10m)
}

func (c JanitorConfig) withDefaults() JanitorConfig {
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 10 * time.Minute
	}
	return c
}

// StartExportJanitor blocks, removing stale export files until ctx ends.
// Run it in its own goroutine.
func StartExportJanitor(ctx context.Context, cfg JanitorConfig) {
	cfg = cfg.withDefaults()
	slog.Info("export janitor started",
		"dir", cfg.Dir,
		"retention", cfg.Retention,
		"interval", cfg.CheckInterval,
	)

	runJanitorPass(cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("export janitor stopped")
			return
		case <-ticker.C:
			runJanitorPass(cfg)
		}
	}
}

func runJanitorPass(cfg JanitorConfig) {
	start := time.Now()
	removed, err := CleanupExports(cfg.Dir, time.Now().Add(-cfg.Retention))
	if err != nil {
		slog.Error("export cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("removed stale exports",
			"files_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// CleanupExports deletes export files in dir last modified before cutoff
// and returns how many were removed. Abandoned temporary files left by an
// interrupted export are removed as well. A missing dir is not an error.
func CleanupExports(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isExportFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func isExportFile(name string) bool {
	return strings.HasPrefix(name, ExportFilePrefix) ||
		(strings.HasPrefix(name, ".export-") && strings.HasSuffix(name, ".tmp"))
}
