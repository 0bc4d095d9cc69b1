package ledger

import (
	"smartfinance/internal/core"
	"smartfinance/internal/insights"
)

// Action is implemented by every state transition below.
type Action interface {
	isAction()
}

type (
	// AddTransaction prepends a record; the newest entry is shown first.
	AddTransaction struct{ Record core.TransactionRecord }

	// DeleteTransaction removes the first record with ID.
	DeleteTransaction struct{ ID string }

	// ReplaceTransaction swaps in an updated copy of an existing record. It is
	// a no-op when the id is no longer present.
	ReplaceTransaction struct{ Record core.TransactionRecord }

	// LoadAnalysis installs a mapped import. Transactions are only replaced
	// when the import carried some.
	LoadAnalysis struct{ Result insights.Result }

	SelectCategory struct{ Name string }

	EditDraft struct{ Input core.FormInput }

	ResetDraft struct{}
)

func (AddTransaction) isAction()     {}
func (DeleteTransaction) isAction()  {}
func (ReplaceTransaction) isAction() {}
func (LoadAnalysis) isAction()       {}
func (SelectCategory) isAction()     {}
func (EditDraft) isAction()          {}
func (ResetDraft) isAction()         {}

// Reduce applies a to s. Slices in s are never written; changed collections
// are rebuilt.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case AddTransaction:
		txs := make([]core.TransactionRecord, 0, len(s.Transactions)+1)
		txs = append(txs, act.Record)
		s.Transactions = append(txs, s.Transactions...)

	case DeleteTransaction:
		idx := indexOf(s.Transactions, act.ID)
		if idx < 0 {
			return s
		}
		txs := make([]core.TransactionRecord, 0, len(s.Transactions)-1)
		txs = append(txs, s.Transactions[:idx]...)
		s.Transactions = append(txs, s.Transactions[idx+1:]...)

	case ReplaceTransaction:
		idx := indexOf(s.Transactions, act.Record.ID)
		if idx < 0 {
			return s
		}
		txs := make([]core.TransactionRecord, len(s.Transactions))
		copy(txs, s.Transactions)
		txs[idx] = act.Record
		s.Transactions = txs

	case LoadAnalysis:
		s.Categories = act.Result.Categories
		s.Insights = act.Result.Insights
		if len(act.Result.Transactions) > 0 {
			s.Transactions = act.Result.Transactions
		}

	case SelectCategory:
		s.Selected = act.Name

	case EditDraft:
		s.Draft = act.Input

	case ResetDraft:
		s.Draft = core.DefaultFormInput()
	}
	return s
}

func indexOf(txs []core.TransactionRecord, id string) int {
	for i, r := range txs {
		if r.ID == id {
			return i
		}
	}
	return -1
}
