// Package app wires the pipeline together: configuration, query discovery,
// stage expansion, plan resolution, and execution.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Francii-B/Phylign-Fulgor/internal/config"
)

// App encapsulates one run of the orchestrator: its logger, its loaded
// configuration, and its output writer.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *config.Config
	appCfg *Config
}

// NewApp loads the pipeline configuration and returns a ready App. A
// configuration that fails to load or validate is a fatal startup error.
func NewApp(outW io.Writer, appConfig *Config) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured.")

	cfg, err := config.Load(appConfig.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.Debug("Configuration loaded.",
		"batches", len(cfg.Pipeline.Batches), "queries_dir", cfg.Pipeline.QueriesDir)

	return &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		appCfg: appConfig,
	}, nil
}

// Logger exposes the app's logger, primarily for tests.
func (a *App) Logger() *slog.Logger { return a.logger }
