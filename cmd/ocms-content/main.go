// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-content/internal/cache"
	"github.com/olegiv/ocms-content/internal/config"
	"github.com/olegiv/ocms-content/internal/conflict"
	"github.com/olegiv/ocms-content/internal/handler"
	"github.com/olegiv/ocms-content/internal/logging"
	"github.com/olegiv/ocms-content/internal/model"
	"github.com/olegiv/ocms-content/internal/scheduler"
	"github.com/olegiv/ocms-content/internal/service"
	"github.com/olegiv/ocms-content/internal/store"
	"github.com/olegiv/ocms-content/internal/version"
	"github.com/olegiv/ocms-content/internal/versioning"
	"github.com/olegiv/ocms-content/internal/webhook"
	"github.com/olegiv/ocms-content/internal/workflow"
)

type flags struct {
	migrateOnly bool
	pruneNow    bool
}

func main() {
	var f flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&f.migrateOnly, "migrate-only", false, "Apply database migrations and exit")
	flag.BoolVar(&f.pruneNow, "prune-now", false, "Run the maintenance jobs once and exit")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ocms-content - content workflow and versioning daemon\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_DRIVER         sqlite|mysql (default: sqlite)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH           SQLite path or MySQL DSN (default: ./data/ocms-content.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT       Health server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL         Redis URL for the content cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_WEBHOOK_URLS      Comma separated webhook endpoints (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_VERSION_RETENTION Historical versions kept per item (default: 50)\n")
	}
	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("ocms-content %s\n", version.Get())
		os.Exit(0)
	}

	if err := run(f); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	// Load .env if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	info := version.Get()

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	slog.SetDefault(slog.New(textHandler))

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations", "driver", cfg.DBDriver)
	if err := store.MigrateDialect(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if f.migrateOnly {
		slog.Info("migrations applied")
		return nil
	}

	// WARN and ERROR records also go to the events table from here on
	logger := slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	contentCache, err := cache.New(cache.Config{
		RedisURL: cfg.RedisURL,
		Prefix:   cfg.CachePrefix,
		TTL:      cfg.CacheTTLDuration(),
		MaxSize:  cfg.CacheMaxSize,
	})
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = contentCache.Close() }()
	if cfg.UseRedisCache() {
		logger.Info("content cache ready", "backend", "redis")
	} else {
		logger.Info("content cache ready", "backend", "memory", "max_size", cfg.CacheMaxSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := webhook.NewDispatcher(webhookConfig(cfg), logger)
	var sender webhook.Sender
	if dispatcher.Enabled() {
		dispatcher.Start(ctx)
		debouncer := webhook.NewDebouncer(dispatcher, webhook.DefaultDebounceConfig(), logger)
		// Deferred in reverse: the debouncer flushes into the dispatcher, which then drains its queue.
		defer dispatcher.Stop()
		defer debouncer.Stop()
		sender = debouncer
		logger.Info("webhooks enabled", "endpoints", len(cfg.WebhookURLs))
	}

	svc, err := service.NewContentService(db, service.Options{
		Transitions: workflow.DefaultTransitions(),
		Versioning:  versioning.Config{Encoding: model.Encoding(cfg.VersionCodec)},
		Conflict:    conflict.Config{Threshold: cfg.ConflictThreshold, PreviewLines: cfg.ConflictPreviewLines},
		Cache:       contentCache,
		CacheTTL:    cfg.CacheTTLDuration(),
		Webhooks:    sender,
		Sanitize:    cfg.SanitizeBodies,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("initializing content service: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Schedule:         cfg.PruneSchedule,
		VersionRetention: cfg.VersionRetention,
		EventRetention:   cfg.EventRetention(),
	}, svc.VersionStore(), service.NewEventService(db, logger), logger)
	if err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}

	if f.pruneNow {
		logger.Info("running maintenance jobs")
		return sched.RunNow(ctx)
	}

	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           handler.NewHealthHandler(db, contentCache, sched, info).Routes(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting health server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("health server: %w", err)
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.DBDriver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		slog.Info("initializing database", "path", cfg.DBPath)
	} else {
		slog.Info("initializing database", "driver", cfg.DBDriver)
	}

	db, err := store.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return db, nil
}

func webhookConfig(cfg *config.Config) webhook.Config {
	wc := webhook.DefaultConfig()
	wc.URLs = cfg.WebhookURLs
	wc.Secret = cfg.WebhookSecret
	wc.Workers = cfg.WebhookWorkers
	wc.Rate = cfg.WebhookRate
	return wc
}
