// Package ledger holds the per-session transaction state. All changes go
// through Reduce, which returns a new State and never touches its input.
package ledger

import (
	"smartfinance/internal/core"
	"smartfinance/internal/insights"
)

// DefaultSelected is the category highlighted before the user picks one.
const DefaultSelected = "Food"

// State is a value: copies share slices, so nothing may write into them.
type State struct {
	Transactions []core.TransactionRecord
	Categories   []core.CategoryBudget
	Insights     []core.InsightNote
	Selected     string
	Draft        core.FormInput
}

// InitialState seeds the session with the sample list and the placeholder
// categories used before any statement is imported.
func InitialState() State {
	return State{
		Transactions: core.SampleTransactions(),
		Categories:   insights.FallbackCategories(),
		Insights:     insights.FallbackInsights(),
		Selected:     DefaultSelected,
		Draft:        core.DefaultFormInput(),
	}
}

// Summary recomputes totals and per-category spend from scratch.
func (s State) Summary() core.Summary {
	return core.Aggregate(s.Transactions, s.Categories)
}

// Find returns the first record with the given id.
func (s State) Find(id string) (core.TransactionRecord, bool) {
	for _, r := range s.Transactions {
		if r.ID == id {
			return r, true
		}
	}
	return core.TransactionRecord{}, false
}
