package cli

import (
	"context"
	"log/slog"
	"testing"

	"smartfinance/internal/config"
	applog "smartfinance/internal/log"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		quiet   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewLogger(&config.Config{LogLevel: tt.level, LogFormat: "json"}, applog.ComponentWorker)
			if l.Component() != applog.ComponentWorker {
				t.Fatalf("unexpected component %q", l.Component())
			}
			if !l.Enabled(context.Background(), tt.enabled) {
				t.Errorf("level %v should be enabled", tt.enabled)
			}
			if l.Enabled(context.Background(), tt.quiet) {
				t.Errorf("level %v should be disabled", tt.quiet)
			}
		})
	}
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext()
	cancel()
	<-ctx.Done()
	if ctx.Err() == nil {
		t.Fatalf("expected cancelled context")
	}
}
