package server

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/vmunix/stowaway/internal/config"
	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/extract"
	"github.com/vmunix/stowaway/internal/handlers"
	"github.com/vmunix/stowaway/internal/hls"
	"github.com/vmunix/stowaway/internal/library"
	"github.com/vmunix/stowaway/internal/migrations"
	"github.com/vmunix/stowaway/internal/playback"
	"github.com/vmunix/stowaway/internal/quota"
	"github.com/vmunix/stowaway/internal/resolve"
	"github.com/vmunix/stowaway/internal/transfer"
)

// App holds the wired components of one process.
type App struct {
	DB       *sql.DB
	Bus      *events.Bus
	Events   *events.EventLog
	Library  *library.Store
	Progress *playback.Store
	Quota    *quota.Monitor
	Manager  *download.Manager
	Handlers []handlers.Handler
}

// Open opens the database, applies the schema and wires every component.
// The library is loaded but not reconciled; Runner.Run does that.
func Open(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", cfg.Storage.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := migrations.Apply(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	app, err := wire(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func wire(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	limit, err := cfg.Quota.LimitBytes()
	if err != nil {
		return nil, fmt.Errorf("quota.limit: %w", err)
	}
	pref, err := hls.ParsePreference(cfg.Downloads.Quality)
	if err != nil {
		return nil, fmt.Errorf("downloads.quality: %w", err)
	}

	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger.With("component", "bus"))

	lib := library.NewStore(library.NewSQLiteKV(db), library.Config{
		Root:        cfg.Storage.Root,
		LegacyRoots: cfg.Storage.LegacyRoots,
	}, bus, logger)

	progress := playback.NewStore(db)
	monitor := quota.NewMonitor(lib, progress, bus, quota.Config{
		Limit:            limit,
		WarningThreshold: cfg.Quota.WarningThreshold,
		CleanupThreshold: cfg.Quota.CleanupThreshold,
		AutoCleanup:      cfg.Quota.AutoCleanup,
		WatchedThreshold: cfg.Quota.WatchedThreshold,
	}, logger)

	manifests := hls.NewClient(cfg.HLS.RequestTimeout)
	engine := extract.New(extract.Config{
		UserAgent: cfg.Downloads.UserAgent,
		Headers:   cfg.Downloads.Headers,
	}, logger)
	cascade := resolve.NewCascade(engine, manifests, logger,
		resolve.WithQuality(pref),
		resolve.WithStrategyMemo(cfg.Downloads.RememberStrategy))
	tr := transfer.New(transfer.Config{TempDir: cfg.Storage.TempDir}, manifests, logger)

	mgr := download.NewManager(download.Config{
		MaxConcurrent:  cfg.Downloads.MaxConcurrent,
		UserAgent:      cfg.Downloads.UserAgent,
		DefaultHeaders: cfg.Downloads.Headers,
	}, cascade, tr, lib, cfg.ModuleRegistry(), bus, logger)

	return &App{
		DB:       db,
		Bus:      bus,
		Events:   eventLog,
		Library:  lib,
		Progress: progress,
		Quota:    monitor,
		Manager:  mgr,
		Handlers: []handlers.Handler{
			handlers.NewQuotaHandler(bus, monitor, progress, cfg.Quota.Interval, logger),
			handlers.NewSubtitleHandler(bus, lib, logger),
		},
	}, nil
}

// Close releases the bus and the database.
func (a *App) Close() error {
	return errors.Join(a.Bus.Close(), a.DB.Close())
}
