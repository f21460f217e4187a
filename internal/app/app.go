// Package app provides the top-level application lifecycle management for the
// up/down evaluation tool. It wires together all dependencies (stores, the
// result cache, and report archival) and dispatches to the configured
// operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quantfold/updownbot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, and runs it to completion. On return the caller should
// invoke Close to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting run",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "backtest":
		return a.BacktestMode(ctx, deps)
	case "optimize":
		return a.OptimizeMode(ctx, deps)
	case "crossval":
		return a.CrossValidateMode(ctx, deps)
	case "abtest":
		return a.ABTestMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
