package backend

import (
	"context"
	"path/filepath"
	"testing"

	"smartfinance/internal/config"
	applog "smartfinance/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	if err != nil || cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Fatalf("unexpected %+v %v", cfg, err)
	}
}

func TestOpenMemory(t *testing.T) {
	res, err := Open(Config{Type: MemoryBackend}, applog.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()
	if res.Store == nil || res.Ready != nil || res.Type.Shared() {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	res, err := Open(Config{Type: SQLiteBackend, SQLiteDBPath: path}, applog.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.Close()
	if res.Ready == nil || !res.Type.Shared() {
		t.Fatalf("sqlite backend should be pingable and shared")
	}
	if err := res.Ready.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown type", Config{Type: "sheets"}},
		{"sqlite without path", Config{Type: SQLiteBackend}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.cfg, applog.Discard()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
