package worker

import (
	"context"
	"fmt"
	"time"

	"smartfinance/internal/amqp"
	"smartfinance/internal/core"
	applog "smartfinance/internal/log"
	"smartfinance/internal/ports"
)

// FeedbackSender delivers a feedback answer to the analysis service.
type FeedbackSender interface {
	SendFeedback(ctx context.Context, e core.FeedbackEntry) error
}

const (
	DefaultBatchSize = 20
	// DefaultClaimLease bounds how long a claimed outbox row stays hidden
	// from other deliverers. It must exceed the feedback send timeout.
	DefaultClaimLease = 2 * time.Minute
)

// DeliveryWorker drains the feedback and export queues. The outbox sweep is a
// backup for messages lost between the API and the broker.
type DeliveryWorker struct {
	sender    FeedbackSender
	outbox    ports.FeedbackOutbox
	exporter  ports.TransactionExporter
	batchSize int
	lease     time.Duration
	logger    *applog.Logger
}

// NewDeliveryWorker wires the worker. outbox and exporter may be nil.
func NewDeliveryWorker(sender FeedbackSender, outbox ports.FeedbackOutbox, exporter ports.TransactionExporter, batchSize int, logger *applog.Logger) *DeliveryWorker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DeliveryWorker{
		sender:    sender,
		outbox:    outbox,
		exporter:  exporter,
		batchSize: batchSize,
		lease:     DefaultClaimLease,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleFeedbackMessage forwards one queued answer. Messages backed by an
// outbox row are always acked; the row is claimed before sending, a failure is
// recorded on it and the sweep retries it. Messages without a row are
// requeued on failure.
func (w *DeliveryWorker) HandleFeedbackMessage(ctx context.Context, msg *amqp.FeedbackMessage) error {
	w.logger.InfoContext(ctx, "Processing feedback message",
		applog.FieldOutboxID, msg.OutboxID,
		applog.FieldCategory, msg.Entry.Category)

	if msg.OutboxID == 0 || w.outbox == nil {
		if err := w.sender.SendFeedback(ctx, msg.Entry); err != nil {
			return fmt.Errorf("send feedback: %w", err)
		}
		return nil
	}

	if !w.claim(ctx, msg.OutboxID) {
		return nil
	}
	w.mark(ctx, msg.OutboxID, w.sender.SendFeedback(ctx, msg.Entry))
	return nil
}

// claim leases an outbox row so only one deliverer sends it. A row that is
// already delivered, parked or leased is skipped.
func (w *DeliveryWorker) claim(ctx context.Context, id int64) bool {
	ok, err := w.outbox.ClaimFeedback(ctx, id, w.lease)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to claim outbox row", applog.FieldOutboxID, id, applog.FieldError, err)
		return false
	}
	if !ok {
		w.logger.DebugContext(ctx, "Outbox row handled elsewhere, skipping", applog.FieldOutboxID, id)
	}
	return ok
}

// HandleExportMessage appends one committed record to the external ledger.
func (w *DeliveryWorker) HandleExportMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	if w.exporter == nil {
		w.logger.WarnContext(ctx, "No exporter configured, skipping export",
			applog.FieldTransactionID, msg.Record.ID)
		return nil
	}

	ref, err := w.exporter.Export(ctx, msg.Record)
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		applog.FieldSessionID, msg.SessionID,
		applog.FieldTransactionID, msg.Record.ID,
		applog.FieldSheetsRef, ref,
		applog.FieldAmount, msg.Record.Amount.String())
	return nil
}

// SweepOutbox retries pending outbox rows. It reports how many were delivered.
func (w *DeliveryWorker) SweepOutbox(ctx context.Context) (int, error) {
	if w.outbox == nil {
		return 0, nil
	}

	items, err := w.outbox.PendingFeedback(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending feedback: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Sweeping feedback outbox", "count", len(items))

	delivered, failed := 0, 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if !w.claim(ctx, item.ID) {
			continue
		}
		err := w.sender.SendFeedback(ctx, item.Entry)
		w.mark(ctx, item.ID, err)
		if err != nil {
			failed++
			continue
		}
		delivered++
	}

	w.logger.InfoContext(ctx, "Outbox sweep completed",
		"total", len(items),
		"delivered", delivered,
		"errors", failed)
	return delivered, nil
}

func (w *DeliveryWorker) mark(ctx context.Context, id int64, sendErr error) {
	if sendErr != nil {
		w.logger.ErrorContext(ctx, "Failed to deliver feedback",
			applog.FieldOutboxID, id,
			applog.FieldError, sendErr)
		if err := w.outbox.MarkFailed(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mark feedback attempt", applog.FieldOutboxID, id, applog.FieldError, err)
		}
		return
	}
	if err := w.outbox.MarkDelivered(ctx, id); err != nil {
		// The analysis service has the answer; a duplicate on the next sweep is harmless.
		w.logger.ErrorContext(ctx, "Failed to mark feedback delivered", applog.FieldOutboxID, id, applog.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Delivered feedback", applog.FieldOutboxID, id)
}
