package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/ledgerview/internal/config"
	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/JonMunkholm/ledgerview/internal/logging"
	"github.com/JonMunkholm/ledgerview/internal/metrics"
	"github.com/JonMunkholm/ledgerview/internal/store"
	"github.com/JonMunkholm/ledgerview/internal/web"
	"github.com/joho/godotenv"
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

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"mirror_driver", cfg.Mirror.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	mirror, err := store.New(ctx, cfg.Mirror)
	if err != nil {
		slog.Error("failed to open mirror", "driver", cfg.Mirror.Driver, "error", err)
		os.Exit(1)
	}
	if mirror == nil {
		slog.Info("dataset mirror disabled")
	}

	reg := metrics.New()

	service := core.NewService(core.Options{
		Mirror:          mirror,
		Metrics:         reg,
		MaxFileSize:     cfg.Upload.MaxFileSize,
		UploadTimeout:   cfg.Upload.Timeout,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
		ExportDir:       cfg.Export.Dir,
		CSVBOM:          cfg.Export.CSVBOM,
	})

	if err := os.MkdirAll(service.ExportDir(), 0o755); err != nil {
		slog.Error("failed to create export directory", "dir", service.ExportDir(), "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, reg, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(ctx)

	go core.StartExportJanitor(jobCtx, core.JanitorConfig{
		Dir:           service.ExportDir(),
		Retention:     cfg.Export.Retention,
		CheckInterval: cfg.Export.CleanupInterval,
	})
	server.RunBackground(jobCtx)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Wait for in-flight loads so the mirror is not closed under them
		if st := service.Limiter().Status(); st.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", st.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if mirror != nil {
			if err := mirror.Close(); err != nil {
				slog.Error("failed to close mirror", "error", err)
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
