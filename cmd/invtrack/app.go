package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/invtrack/internal/backup"
	"github.com/vbonduro/invtrack/internal/config"
	"github.com/vbonduro/invtrack/internal/db"
	"github.com/vbonduro/invtrack/internal/filestore/local"
	"github.com/vbonduro/invtrack/internal/logging"
	"github.com/vbonduro/invtrack/internal/report"
	"github.com/vbonduro/invtrack/internal/service"
	"github.com/vbonduro/invtrack/internal/store"
)

// app holds everything a command needs. It is built once per invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *sql.DB
	items   *store.ItemStore
	history *store.HistoryStore
	svc     *service.InventoryService
	reports *report.Aggregator
	backups *backup.Manager
	cleanup func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, err
	}

	items := store.NewItemStore(database)
	history := store.NewHistoryStore(database)
	svc := service.NewInventoryService(database, items, history, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		items:   items,
		history: history,
		svc:     svc,
		reports: report.NewAggregator(items),
		backups: backup.NewManager(items, svc, local.NewLocalFileStore(), logger),
		cleanup: cleanup,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.cleanup()
}
