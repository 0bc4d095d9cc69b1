package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
	"smartfinance/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ ports.Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveTransaction implements ports.TransactionWriter
func (r *SQLiteRepository) SaveTransaction(ctx context.Context, sessionID string, t core.TransactionRecord) error {
	if err := insertTransaction(ctx, r.db, sessionID, t); err != nil {
		return err
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"session_id", sessionID,
		"id", t.ID,
		"amount", t.Amount.String(),
		"kind", t.Kind)
	return nil
}

func insertTransaction(ctx context.Context, db execer, sessionID string, t core.TransactionRecord) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions
			(session_id, id, description, amount, category, date, kind, merchant, location, post_date, flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, t.ID, t.Description, t.Amount.String(), t.Category, t.Date,
		string(t.Kind), t.Merchant, t.Location, t.PostDate, boolToInt(t.Flagged))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ReplaceSession implements ports.SessionStore. Rows and analysis are
// swapped in one transaction.
func (r *SQLiteRepository) ReplaceSession(ctx context.Context, sessionID string, d ports.SessionData) error {
	categories, err := json.Marshal(nonNil(d.Categories))
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}
	insights, err := json.Marshal(nonNil(d.Insights))
	if err != nil {
		return fmt.Errorf("encode insights: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, categories, insights, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			categories = excluded.categories,
			insights = excluded.insights,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(categories), string(insights)); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session transactions: %w", err)
	}
	// Oldest first so seq keeps the newest-first listing order.
	for i := len(d.Transactions) - 1; i >= 0; i-- {
		if err := insertTransaction(ctx, tx, sessionID, d.Transactions[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	slog.DebugContext(ctx, "Session replaced in SQLite",
		"session_id", sessionID,
		"transactions", len(d.Transactions))
	return nil
}

// LoadSession implements ports.SessionStore
func (r *SQLiteRepository) LoadSession(ctx context.Context, sessionID string) (ports.SessionData, bool, error) {
	var categories, insights string
	err := r.db.QueryRowContext(ctx,
		`SELECT categories, insights FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&categories, &insights)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.SessionData{}, false, nil
	}
	if err != nil {
		return ports.SessionData{}, false, fmt.Errorf("load session: %w", err)
	}

	var d ports.SessionData
	if err := json.Unmarshal([]byte(categories), &d.Categories); err != nil {
		return ports.SessionData{}, false, fmt.Errorf("decode categories: %w", err)
	}
	if err := json.Unmarshal([]byte(insights), &d.Insights); err != nil {
		return ports.SessionData{}, false, fmt.Errorf("decode insights: %w", err)
	}
	if d.Transactions, err = r.ListTransactions(ctx, sessionID); err != nil {
		return ports.SessionData{}, false, err
	}
	return d, true, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// UpdateTransaction implements ports.TransactionWriter. Only the newest row
// with the id is touched.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, sessionID string, t core.TransactionRecord) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET description = ?, amount = ?, category = ?, date = ?, kind = ?,
			merchant = ?, location = ?, post_date = ?, flagged = ?
		WHERE seq = (
			SELECT seq FROM transactions WHERE session_id = ? AND id = ?
			ORDER BY seq DESC LIMIT 1
		)`,
		t.Description, t.Amount.String(), t.Category, t.Date, string(t.Kind),
		t.Merchant, t.Location, t.PostDate, boolToInt(t.Flagged),
		sessionID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// DeleteTransaction implements ports.TransactionWriter. Duplicate ids lose
// only the newest row, matching the in-memory ledger.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, sessionID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE seq = (
			SELECT seq FROM transactions WHERE session_id = ? AND id = ?
			ORDER BY seq DESC LIMIT 1
		)`, sessionID, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete transaction rows: %w", err)
	}
	return n > 0, nil
}

// ListTransactions implements ports.TransactionLister
func (r *SQLiteRepository) ListTransactions(ctx context.Context, sessionID string) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount, category, date, kind, merchant, location, post_date, flagged
		FROM transactions
		WHERE session_id = ?
		ORDER BY seq DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var (
			t       core.TransactionRecord
			amount  string
			kind    string
			flagged int64
		)
		if err := rows.Scan(&t.ID, &t.Description, &amount, &t.Category, &t.Date, &kind,
			&t.Merchant, &t.Location, &t.PostDate, &flagged); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
		}
		t.Kind = core.Kind(kind)
		t.Flagged = flagged != 0
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// EnqueueFeedback implements ports.FeedbackOutbox
func (r *SQLiteRepository) EnqueueFeedback(ctx context.Context, e core.FeedbackEntry) (int64, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode feedback: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback_outbox (payload, status) VALUES (?, ?)`,
		string(payload), ports.OutboxPending)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("feedback id: %w", err)
	}

	slog.InfoContext(ctx, "Feedback queued in outbox", "outbox_id", id)
	return id, nil
}

// PendingFeedback implements ports.FeedbackOutbox
func (r *SQLiteRepository) PendingFeedback(ctx context.Context, limit int) ([]ports.OutboxItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payload, status, attempts, created_at
		FROM feedback_outbox
		WHERE status = ? AND lease_until <= ?
		ORDER BY id
		LIMIT ?`, ports.OutboxPending, r.now().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending feedback: %w", err)
	}
	defer rows.Close()

	var out []ports.OutboxItem
	for rows.Next() {
		var (
			it        ports.OutboxItem
			payload   string
			createdAt string
		)
		if err := rows.Scan(&it.ID, &payload, &it.Status, &it.Attempts, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &it.Entry); err != nil {
			slog.WarnContext(ctx, "Skipping undecodable outbox row", "outbox_id", it.ID, "error", err)
			continue
		}
		it.CreatedAt = parseTimestamp(createdAt)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

// ClaimFeedback implements ports.FeedbackOutbox. The conditional update makes
// the claim atomic across the consumer and the sweep.
func (r *SQLiteRepository) ClaimFeedback(ctx context.Context, id int64, lease time.Duration) (bool, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE feedback_outbox
		SET lease_until = ?
		WHERE id = ? AND status = ? AND lease_until <= ?`,
		now.Add(lease).UnixMilli(), id, ports.OutboxPending, now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("claim feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM feedback_outbox WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("outbox item %d: %w", id, ErrOutboxItemNotFound)
		}
		return false, fmt.Errorf("check feedback: %w", err)
	}
	return false, nil
}

// MarkDelivered implements ports.FeedbackOutbox
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE feedback_outbox
		SET status = ?, delivered_at = CURRENT_TIMESTAMP
		WHERE id = ?`, ports.OutboxDelivered, id)
	if err != nil {
		return fmt.Errorf("mark feedback delivered: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Feedback marked as delivered", "outbox_id", id)
	return nil
}

// MarkFailed implements ports.FeedbackOutbox
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE feedback_outbox
		SET attempts = attempts + 1,
			lease_until = 0,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?`, ports.MaxOutboxAttempts, ports.OutboxFailed, id)
	if err != nil {
		return fmt.Errorf("mark feedback failed: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Feedback delivery failed", "outbox_id", id)
	return nil
}

var ErrOutboxItemNotFound = errors.New("outbox item not found")

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("outbox item %d: %w", id, ErrOutboxItemNotFound)
	}
	return nil
}

// parseTimestamp accepts both the driver's RFC 3339 rendering and SQLite's
// CURRENT_TIMESTAMP text.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
