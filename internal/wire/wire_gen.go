// Code generated manually. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package wire

import (
	"context"
	"fmt"

	"github.com/diff0/diff0/internal/analysis"
	"github.com/diff0/diff0/internal/app"
	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/db"
	"github.com/diff0/diff0/internal/github"
	"github.com/diff0/diff0/internal/jobs"
	"github.com/diff0/diff0/internal/logger"
	"github.com/diff0/diff0/internal/sandbox"
	"github.com/diff0/diff0/internal/server"
	"github.com/diff0/diff0/internal/storage"
)

// InitializeApp creates and wires all application dependencies.
func InitializeApp(ctx context.Context) (*app.App, func(), error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	slogLogger := logger.NewLogger(provideLoggerConfig(cfg), provideLogWriter(cfg))

	// Database
	dbConn, dbCleanup, err := db.NewDatabase(provideDBConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := dbConn.RunMigrations(); err != nil {
		dbCleanup()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage
	store := storage.NewStore(dbConn.DB)

	// GitHub installation token source
	tokens := github.NewTokenSource(cfg, slogLogger)

	// Sandbox provisioner
	sandboxes := sandbox.NewManager(cfg, slogLogger)

	// Analyzer
	analyzer := analysis.NewAnalyzer(cfg, slogLogger)

	// Review Job
	reviewJob := jobs.NewReviewJob(cfg, store, tokens, sandboxes, analyzer, slogLogger)

	// Dispatcher
	dispatcher := jobs.NewDispatcher(reviewJob, provideMaxWorkers(cfg), slogLogger)

	// Installation sync
	syncer := jobs.NewInstallationSyncer(store, slogLogger)

	// Server
	srv := server.NewServer(ctx, cfg, store, dispatcher, syncer, slogLogger)

	// App
	application := app.NewApp(ctx, cfg, dbConn, store, dispatcher, srv, slogLogger)

	cleanup := func() {
		dbCleanup()
	}

	return application, cleanup, nil
}
