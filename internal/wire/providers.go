package wire

import (
	"io"
	"os"

	"github.com/google/wire"

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

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	logger.NewLogger,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewStore,
	github.NewTokenSource,
	sandbox.NewManager,
	analysis.NewAnalyzer,
	jobs.NewReviewJob,
	jobs.NewDispatcher,
	jobs.NewInstallationSyncer,
	provideLoggerConfig,
	provideLogWriter,
	provideDBConfig,
	provideMaxWorkers,
)

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	switch cfg.Logging.Output {
	case "stderr":
		return os.Stderr
	case "file":
		f, _ := os.OpenFile("diff0.log", os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		return f
	default:
		return os.Stdout
	}
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return cfg.Database
}

func provideMaxWorkers(cfg *config.Config) int {
	return cfg.Review.MaxWorkers
}
