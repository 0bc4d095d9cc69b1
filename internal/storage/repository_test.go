package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
	"smartfinance/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := core.TransactionRecord{
		ID: "1", Description: "Monthly Groceries", Amount: decimal.RequireFromString("245.50"),
		Category: "Food", Date: "2024-04-12", Kind: core.KindExpense, Merchant: "Whole Foods",
	}
	b := core.TransactionRecord{
		ID: "2", Description: "Salary", Amount: decimal.NewFromInt(3500),
		Category: "Income", Date: "04/01/2024", Kind: core.KindIncome,
	}
	for _, r := range []core.TransactionRecord{a, b} {
		if err := repo.SaveTransaction(ctx, "s1", r); err != nil {
			t.Fatalf("save %s: %v", r.ID, err)
		}
	}

	got, err := repo.ListTransactions(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Fatalf("expected newest first, got %+v", got)
	}
	if !got[1].Amount.Equal(a.Amount) || got[1].Merchant != "Whole Foods" || got[1].Kind != core.KindExpense {
		t.Fatalf("round trip lost data: %+v", got[1])
	}

	if err := repo.UpdateTransaction(ctx, "s1", a.WithFlagged(true)); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.ListTransactions(ctx, "s1")
	if !got[1].Flagged {
		t.Fatalf("flag not persisted")
	}

	ok, err := repo.DeleteTransaction(ctx, "s1", "1")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, _ = repo.DeleteTransaction(ctx, "s1", "1")
	if ok {
		t.Fatalf("second delete must report false")
	}
	other, _ := repo.ListTransactions(ctx, "s2")
	if len(other) != 0 {
		t.Fatalf("sessions leaked: %+v", other)
	}
}

func TestDeleteDuplicateIDRemovesOne(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	r := core.TransactionRecord{ID: "dup", Description: "x", Amount: decimal.NewFromInt(1), Kind: core.KindExpense}
	_ = repo.SaveTransaction(ctx, "s", r)
	_ = repo.SaveTransaction(ctx, "s", r)

	if ok, _ := repo.DeleteTransaction(ctx, "s", "dup"); !ok {
		t.Fatalf("expected a deletion")
	}
	got, _ := repo.ListTransactions(ctx, "s")
	if len(got) != 1 {
		t.Fatalf("expected exactly one remaining row, got %d", len(got))
	}
}

func TestFeedbackOutbox(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := core.FeedbackEntry{
		Description: "Uber Eats Dinner",
		Category:    "Food",
		Amount:      decimal.RequireFromString("25.99"),
		Necessary:   false,
		Reason:      "could cook",
	}
	id, err := repo.EnqueueFeedback(ctx, entry)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := repo.PendingFeedback(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("unexpected pending rows %+v", pending)
	}
	if !pending[0].Entry.Amount.Equal(entry.Amount) || pending[0].Entry.Reason != "could cook" {
		t.Fatalf("payload not preserved: %+v", pending[0].Entry)
	}
	if pending[0].CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}

	for i := 0; i < ports.MaxOutboxAttempts-1; i++ {
		if err := repo.MarkFailed(ctx, id); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}
	pending, _ = repo.PendingFeedback(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != ports.MaxOutboxAttempts-1 {
		t.Fatalf("row should still be pending: %+v", pending)
	}
	if err := repo.MarkFailed(ctx, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ = repo.PendingFeedback(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("row should be parked after max attempts")
	}

	id2, _ := repo.EnqueueFeedback(ctx, entry)
	if err := repo.MarkDelivered(ctx, id2); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if err := repo.MarkDelivered(ctx, 12345); !errors.Is(err, ErrOutboxItemNotFound) {
		t.Fatalf("expected ErrOutboxItemNotFound, got %v", err)
	}
}

func TestReplaceAndLoadSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, found, err := repo.LoadSession(ctx, "s1"); err != nil || found {
		t.Fatalf("unknown session should not be found, found=%v err=%v", found, err)
	}

	seeded := ports.SessionData{
		Categories:   []core.CategoryBudget{{Name: "Food", Budget: decimal.NewFromInt(500), Icon: "food", Insights: []string{}}},
		Insights:     []core.InsightNote{{Title: "Tip", Description: "Cook more", Kind: core.InsightTip, Icon: "lightbulb"}},
		Transactions: core.SampleTransactions(),
	}
	if err := repo.ReplaceSession(ctx, "s1", seeded); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, found, err := repo.LoadSession(ctx, "s1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if len(got.Transactions) != len(seeded.Transactions) || got.Transactions[0].ID != "1" || got.Transactions[9].ID != "10" {
		t.Fatalf("order not kept: %+v", got.Transactions)
	}
	if len(got.Categories) != 1 || !got.Categories[0].Budget.Equal(decimal.NewFromInt(500)) || got.Insights[0].Kind != core.InsightTip {
		t.Fatalf("analysis not kept: %+v %+v", got.Categories, got.Insights)
	}

	imported := []core.TransactionRecord{
		{ID: "imported-0", Description: "Whole Foods", Amount: decimal.NewFromInt(42), Kind: core.KindExpense},
		{ID: "imported-1", Description: "Rent", Amount: decimal.NewFromInt(900), Kind: core.KindExpense},
	}
	for i := 0; i < 2; i++ {
		if err := repo.ReplaceSession(ctx, "s1", ports.SessionData{Transactions: imported}); err != nil {
			t.Fatalf("replace %d: %v", i, err)
		}
	}
	got, _, _ = repo.LoadSession(ctx, "s1")
	if len(got.Transactions) != 2 || got.Transactions[0].ID != "imported-0" || len(got.Categories) != 0 {
		t.Fatalf("repeated replace should not accumulate rows: %+v", got)
	}

	bad := ports.SessionData{Transactions: []core.TransactionRecord{{ID: "x"}}}
	if err := repo.ReplaceSession(ctx, "s1", bad); err == nil {
		t.Fatalf("invalid record should be rejected")
	}
	if got, _, _ = repo.LoadSession(ctx, "s1"); len(got.Transactions) != 2 {
		t.Fatalf("failed replace must roll back, got %d rows", len(got.Transactions))
	}
}

func TestClaimFeedbackLease(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	id, err := repo.EnqueueFeedback(ctx, core.FeedbackEntry{Description: "Coffee"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if ok, err := repo.ClaimFeedback(ctx, id, time.Minute); err != nil || !ok {
		t.Fatalf("first claim should win, ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ClaimFeedback(ctx, id, time.Minute); err != nil || ok {
		t.Fatalf("second claim should lose, ok=%v err=%v", ok, err)
	}
	if pending, _ := repo.PendingFeedback(ctx, 10); len(pending) != 0 {
		t.Fatalf("leased row must not be listed as pending")
	}

	now = now.Add(2 * time.Minute)
	if pending, _ := repo.PendingFeedback(ctx, 10); len(pending) != 1 {
		t.Fatalf("expired lease should be pending again")
	}
	if ok, _ := repo.ClaimFeedback(ctx, id, time.Minute); !ok {
		t.Fatalf("expired lease should be claimable")
	}
	if err := repo.MarkFailed(ctx, id); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if ok, _ := repo.ClaimFeedback(ctx, id, time.Minute); !ok {
		t.Fatalf("a failed attempt should release the lease")
	}
	if err := repo.MarkDelivered(ctx, id); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if ok, err := repo.ClaimFeedback(ctx, id, time.Minute); err != nil || ok {
		t.Fatalf("delivered row must not be claimed, ok=%v err=%v", ok, err)
	}
	if _, err := repo.ClaimFeedback(ctx, 999, time.Minute); !errors.Is(err, ErrOutboxItemNotFound) {
		t.Fatalf("expected ErrOutboxItemNotFound, got %v", err)
	}
}
