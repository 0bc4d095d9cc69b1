package ports

import (
	"context"
	"time"

	"smartfinance/internal/core"
)

// Outbox row states.
const (
	OutboxPending   = "pending"
	OutboxDelivered = "delivered"
	OutboxFailed    = "failed"
)

// MaxOutboxAttempts is the number of delivery attempts before a row is parked
// as failed.
const MaxOutboxAttempts = 5

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		SaveTransaction(ctx context.Context, sessionID string, r core.TransactionRecord) error
		// UpdateTransaction overwrites the stored copy with the same id.
		UpdateTransaction(ctx context.Context, sessionID string, r core.TransactionRecord) error
		// DeleteTransaction removes one record and reports whether it existed.
		DeleteTransaction(ctx context.Context, sessionID, id string) (bool, error)
	}

	// SessionStore keeps a whole session so it can be rebuilt after expiry.
	SessionStore interface {
		// ReplaceSession overwrites every stored record and the analysis of
		// the session.
		ReplaceSession(ctx context.Context, sessionID string, d SessionData) error
		// LoadSession reports found=false for a session that was never stored.
		LoadSession(ctx context.Context, sessionID string) (d SessionData, found bool, err error)
	}

	TransactionLister interface {
		// ListTransactions returns a session's records newest first.
		ListTransactions(ctx context.Context, sessionID string) ([]core.TransactionRecord, error)
	}

	// FeedbackOutbox keeps feedback until the analysis service has accepted it.
	FeedbackOutbox interface {
		EnqueueFeedback(ctx context.Context, e core.FeedbackEntry) (id int64, err error)
		PendingFeedback(ctx context.Context, limit int) ([]OutboxItem, error)
		// ClaimFeedback leases a pending row to one sender until the lease
		// expires. It reports false when the row is delivered, parked or
		// already leased.
		ClaimFeedback(ctx context.Context, id int64, lease time.Duration) (bool, error)
		MarkDelivered(ctx context.Context, id int64) error
		// MarkFailed records a failed attempt and releases the lease.
		MarkFailed(ctx context.Context, id int64) error
	}

	// TransactionExporter appends a committed record to an external ledger.
	TransactionExporter interface {
		Export(ctx context.Context, r core.TransactionRecord) (rowRef string, err error)
	}

	Repository interface {
		TransactionWriter
		TransactionLister
		SessionStore
		FeedbackOutbox
		Close() error
	}

	// SessionData is the persisted part of a session, records newest first.
	SessionData struct {
		Categories   []core.CategoryBudget
		Insights     []core.InsightNote
		Transactions []core.TransactionRecord
	}

	OutboxItem struct {
		ID         int64
		Entry      core.FeedbackEntry
		Status     string
		Attempts   int
		CreatedAt  time.Time
		LeaseUntil time.Time
	}
)
