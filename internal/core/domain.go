package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	InsightWarning     InsightKind = "warning"
	InsightTip         InsightKind = "tip"
	InsightAchievement InsightKind = "achievement"
	// InsightNeutral is used for any kind string the mapper does not recognize.
	InsightNeutral InsightKind = "info"
)

const (
	UnknownDescription = "Unknown Transaction"
	Uncategorized      = "Uncategorized"
)

type (
	Kind        string
	InsightKind string

	// TransactionRecord is the canonical transaction shape. Amount is always a
	// non-negative magnitude; direction lives in Kind.
	TransactionRecord struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Date        string          `json:"date"` // stored as received: YYYY-MM-DD or MM/DD/YYYY
		Kind        Kind            `json:"kind"`
		Merchant    string          `json:"merchant,omitempty"`
		Location    string          `json:"location,omitempty"`
		PostDate    string          `json:"postDate,omitempty"`
		Flagged     bool            `json:"flagged"`
	}

	CategoryBudget struct {
		Name     string
		Budget   decimal.Decimal
		Icon     string
		Insights []string
	}

	InsightNote struct {
		Title       string
		Description string
		Kind        InsightKind
		RawKind     string
		Icon        string
	}

	// FeedbackEntry is what the user tells the analysis service about a
	// transaction after an advisory prompt.
	FeedbackEntry struct {
		Description string          `json:"description"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Necessary   bool            `json:"necessary"`
		Reason      string          `json:"reason"`
	}

	Advisory struct {
		Score        float64
		Reason       string
		Alternatives string
		Prompt       bool
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrNegativeAmount   = errors.New("amount must be a non-negative magnitude")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyID          = errors.New("empty transaction id")
	ErrInvalidKind      = errors.New("invalid transaction kind")
)

// ParseKind accepts the kind strings used by forms and storage. Anything
// other than "income" is an expense, matching the form default.
func ParseKind(s string) Kind {
	if strings.EqualFold(strings.TrimSpace(s), string(KindIncome)) {
		return KindIncome
	}
	return KindExpense
}

func (k Kind) IsValid() bool {
	return k == KindIncome || k == KindExpense
}

func (k InsightKind) IsKnown() bool {
	switch k {
	case InsightWarning, InsightTip, InsightAchievement:
		return true
	default:
		return false
	}
}

func (r TransactionRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if r.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	return nil
}

// WithFlagged returns a copy of the record with the flag set. Records already
// published to a collection are never modified in place.
func (r TransactionRecord) WithFlagged(flagged bool) TransactionRecord {
	r.Flagged = flagged
	return r
}

// Signed returns the amount with the sign implied by Kind.
func (r TransactionRecord) Signed() decimal.Decimal {
	if r.Kind == KindExpense {
		return r.Amount.Neg()
	}
	return r.Amount
}

// Feedback builds the feedback payload for this record.
func (r TransactionRecord) Feedback(necessary bool, reason string) FeedbackEntry {
	return FeedbackEntry{
		Description: r.Description,
		Category:    r.Category,
		Amount:      r.Amount,
		Necessary:   necessary,
		Reason:      reason,
	}
}
