package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	applog "smartfinance/internal/log"
)

const DefaultSweepSchedule = "@every 1m"

// ParseSchedule validates a sweep schedule in standard five-field cron syntax
// or one of the @every/@hourly descriptors.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunSweeps sweeps once at startup, then on every tick of spec until ctx is
// done. Overlapping runs are skipped.
func (w *DeliveryWorker) RunSweeps(ctx context.Context, spec string) error {
	if _, err := w.SweepOutbox(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup outbox sweep failed", applog.FieldError, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := w.SweepOutbox(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Periodic outbox sweep failed", applog.FieldError, err)
		}
	}); err != nil {
		return fmt.Errorf("schedule outbox sweep: %w", err)
	}

	c.Start()
	w.logger.InfoContext(ctx, "Outbox sweep scheduled", "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
