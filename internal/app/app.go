// Package app initializes and orchestrates the main components of the diff0
// service. It wires together the configuration, server, and other services.
package app

import (
	"context"
	"log/slog"

	"github.com/diff0/diff0/internal/config"
	"github.com/diff0/diff0/internal/core"
	"github.com/diff0/diff0/internal/db"
	"github.com/diff0/diff0/internal/server"
	"github.com/diff0/diff0/internal/storage"
)

// App holds the main application components. Store is exported for the
// admin CLI, which reuses the wired application instead of opening its own
// database connection.
type App struct {
	ctx        context.Context
	cfg        *config.Config
	server     *server.Server
	logger     *slog.Logger
	dispatcher core.JobDispatcher
	dbConn     *db.DB

	Store storage.Store
}

// NewApp assembles the application from its already-constructed components.
func NewApp(ctx context.Context, cfg *config.Config, dbConn *db.DB, store storage.Store, dispatcher core.JobDispatcher, srv *server.Server, logger *slog.Logger) *App {
	return &App{
		ctx:        ctx,
		cfg:        cfg,
		server:     srv,
		logger:     logger,
		dispatcher: dispatcher,
		dbConn:     dbConn,
		Store:      store,
	}
}

// Start runs the HTTP server and blocks until it stops.
func (a *App) Start() error {
	a.logger.Info("starting diff0",
		"server_port", a.cfg.Server.Port,
		"max_workers", a.cfg.Review.MaxWorkers)

	if err := a.server.Start(); err != nil {
		a.logger.Error("failed to start HTTP server", "error", err)
		return err
	}
	return nil
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down diff0 services")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
		// Continue to stop other components even if the server failed.
	}

	// Stop the job dispatcher, allowing in-flight reviews to finish.
	a.dispatcher.Stop()

	if serverErr != nil {
		a.logger.Error("diff0 stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("diff0 stopped successfully")
	return nil
}
