// Package cli holds the start-up steps shared by cmd/smartfinance and
// cmd/smartfinance-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"smartfinance/internal/config"
	applog "smartfinance/internal/log"
)

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config, component string) *applog.Logger {
	return applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
}

// LoadAndValidateConfig loads .env and the environment, sets up the default
// logger and exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := NewLogger(cfg, component)
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
