package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/vk/dspgridgo/internal/ctxlog"
	"github.com/vk/dspgridgo/internal/patch"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *patch.Model

	ticksCompleted atomic.Uint64
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and the loaded
// patch model. A failure to load the patch is a fatal startup error.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := patch.Load(ctx, config.PatchPath)
	if err != nil {
		panic(fmt.Errorf("failed to load patch: %w", err))
	}
	logger.Debug("Patch loaded.", "nodes", len(model.Nodes))

	return &App{
		outW:   outW,
		logger: logger,
		config: config,
		model:  model,
	}
}

// Model returns the loaded patch model. This is primarily for testing.
func (a *App) Model() *patch.Model {
	return a.model
}
