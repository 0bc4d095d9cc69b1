// Package backend opens the transaction store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"smartfinance/internal/config"
	applog "smartfinance/internal/log"
	"smartfinance/internal/memory"
	"smartfinance/internal/ports"
	"smartfinance/internal/storage"
)

// Type names a storage backend.
type Type string

const (
	SQLiteBackend Type = config.BackendSQLite
	MemoryBackend Type = config.BackendMemory
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Shared reports whether another process sees the same data.
func (t Type) Shared() bool {
	return t == SQLiteBackend
}

// Pinger reports readiness of a backend that can fail at runtime.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Type         Type
	SQLiteDBPath string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{Type: t, SQLiteDBPath: appConfig.SQLiteDBPath}, nil
}

// Result is an opened backend. Ready is nil for the memory backend.
type Result struct {
	Type  Type
	Store ports.Repository
	Ready Pinger
}

// Close releases the store.
func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Open creates the store for cfg. SQLite migrations run on open.
func Open(cfg Config, logger *applog.Logger) (*Result, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentStorage)

	switch cfg.Type {
	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Type: cfg.Type, Store: repo, Ready: repo}, nil
	case MemoryBackend:
		logger.Info("Initialized memory backend")
		return &Result{Type: cfg.Type, Store: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
