package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
	"smartfinance/internal/insights"
)

func rec(id, category string, kind core.Kind, amount string) core.TransactionRecord {
	return core.TransactionRecord{
		ID:          id,
		Description: "tx " + id,
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Kind:        kind,
		Date:        "2024-04-12",
	}
}

func scenarioState() State {
	return State{
		Transactions: []core.TransactionRecord{
			rec("1", "Income", core.KindIncome, "3500"),
			rec("2", "Food", core.KindExpense, "245.50"),
			rec("3", "Housing", core.KindExpense, "1800"),
		},
		Categories: []core.CategoryBudget{{Name: "Food", Budget: decimal.NewFromInt(500)}},
	}
}

func TestAddPrepends(t *testing.T) {
	s := scenarioState()
	next := Reduce(s, AddTransaction{Record: rec("4", "Food", core.KindExpense, "10")})
	if len(next.Transactions) != 4 || next.Transactions[0].ID != "4" {
		t.Fatalf("expected new record first, got %+v", next.Transactions)
	}
	if len(s.Transactions) != 3 {
		t.Fatalf("input state was mutated")
	}
	if !next.Summary().TotalExpense.Equal(decimal.RequireFromString("2055.50")) {
		t.Fatalf("summary did not reflect addition")
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	s := scenarioState()
	s = Reduce(s, AddTransaction{Record: rec("2", "Food", core.KindExpense, "5")})

	next := Reduce(s, DeleteTransaction{ID: "2"})
	if len(next.Transactions) != len(s.Transactions)-1 {
		t.Fatalf("expected exactly one removal, got %d -> %d", len(s.Transactions), len(next.Transactions))
	}
	if _, ok := next.Find("2"); !ok {
		t.Fatalf("the second record with the duplicate id must survive")
	}
	if !next.Summary().TotalExpense.Equal(decimal.RequireFromString("2045.50")) {
		t.Fatalf("totals must drop the deleted record, got %s", next.Summary().TotalExpense)
	}
	if len(s.Transactions) != 4 || s.Transactions[0].ID != "2" {
		t.Fatalf("input state was mutated: %+v", s.Transactions)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := scenarioState()
	next := Reduce(s, DeleteTransaction{ID: "nope"})
	if len(next.Transactions) != 3 {
		t.Fatalf("delete of missing id changed state")
	}
}

func TestReplaceDoesNotMutateInput(t *testing.T) {
	s := scenarioState()
	orig := s.Transactions[1]
	next := Reduce(s, ReplaceTransaction{Record: orig.WithFlagged(true)})

	if !next.Transactions[1].Flagged {
		t.Fatalf("replacement not applied")
	}
	if s.Transactions[1].Flagged {
		t.Fatalf("input slice was written through")
	}
}

func TestReplaceAfterDeleteIsNoop(t *testing.T) {
	s := scenarioState()
	pending := s.Transactions[2].WithFlagged(true)

	s = Reduce(s, DeleteTransaction{ID: "3"})
	s = Reduce(s, ReplaceTransaction{Record: pending})
	if _, ok := s.Find("3"); ok {
		t.Fatalf("late replacement resurrected a deleted record")
	}
	if len(s.Transactions) != 2 {
		t.Fatalf("unexpected length %d", len(s.Transactions))
	}
}

func TestLoadAnalysis(t *testing.T) {
	s := scenarioState()
	mapped := insights.Result{
		Categories: []core.CategoryBudget{{Name: "Travel", Budget: decimal.NewFromInt(150)}},
		Insights:   []core.InsightNote{{Title: "x"}},
	}
	next := Reduce(s, LoadAnalysis{Result: mapped})
	if len(next.Transactions) != 3 {
		t.Fatalf("import without transactions must keep the current list")
	}
	if next.Categories[0].Name != "Travel" || len(next.Insights) != 1 {
		t.Fatalf("categories/insights not installed: %+v", next)
	}

	mapped.Transactions = []core.TransactionRecord{rec("imported-0", "Food", core.KindExpense, "1")}
	next = Reduce(next, LoadAnalysis{Result: mapped})
	if len(next.Transactions) != 1 || next.Transactions[0].ID != "imported-0" {
		t.Fatalf("imported transactions should replace the list: %+v", next.Transactions)
	}
}

func TestDraftAndSelection(t *testing.T) {
	s := InitialState()
	s = Reduce(s, EditDraft{Input: core.FormInput{Description: "a", Amount: "1"}})
	s = Reduce(s, SelectCategory{Name: "Housing"})
	if s.Draft.Description != "a" || s.Selected != "Housing" {
		t.Fatalf("unexpected state %+v", s)
	}
	s = Reduce(s, ResetDraft{})
	if s.Draft != core.DefaultFormInput() {
		t.Fatalf("draft not reset: %+v", s.Draft)
	}
}

func TestInitialStateUsesSamples(t *testing.T) {
	s := InitialState()
	if len(s.Transactions) != len(core.SampleTransactions()) {
		t.Fatalf("expected sample transactions")
	}
	sum := s.Summary()
	if !sum.TotalIncome.Sub(sum.TotalExpense).Equal(sum.Balance) {
		t.Fatalf("balance mismatch")
	}
}

func TestSessionConcurrentDispatch(t *testing.T) {
	sess := NewSession("s", State{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.Dispatch(AddTransaction{Record: rec(time.Now().String(), "Food", core.KindExpense, "1")})
		}(i)
	}
	wg.Wait()
	if n := len(sess.Snapshot().Transactions); n != 50 {
		t.Fatalf("expected 50 records, got %d", n)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(func() State { return State{Selected: "x"} })
	if _, err := r.Get("missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	s := r.Create()
	if s.ID == "" || s.Snapshot().Selected != "x" {
		t.Fatalf("unexpected session %+v", s)
	}
	if got := r.Ensure(s.ID); got != s {
		t.Fatalf("Ensure must return the existing session")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session")
	}
	if removed := r.Expire(-time.Second); removed != 1 || r.Len() != 0 {
		t.Fatalf("expire should drop idle sessions, removed %d", removed)
	}
}

func TestSnapshotKeepsSessionAlive(t *testing.T) {
	r := NewRegistry(nil)
	s := r.Create()
	s.mu.Lock()
	s.lastSeen = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	s.Snapshot()
	if removed := r.Expire(time.Minute); removed != 0 || r.Len() != 1 {
		t.Fatalf("polled session must survive expiry, removed %d", removed)
	}
}

func TestRegistryAdopt(t *testing.T) {
	r := NewRegistry(func() State { return State{Selected: "initial"} })
	if got := r.Initial().Selected; got != "initial" {
		t.Fatalf("Initial() = %q", got)
	}
	first := r.Adopt("s1", State{Selected: "stored"})
	if first.Snapshot().Selected != "stored" {
		t.Fatalf("adopted state not used")
	}
	if again := r.Adopt("s1", State{Selected: "other"}); again != first {
		t.Fatalf("Adopt must keep the existing session")
	}
	if got, err := r.Get("s1"); err != nil || got != first {
		t.Fatalf("Get after Adopt: %v", err)
	}
}
