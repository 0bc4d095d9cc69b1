package core

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

// saleType marks an imported row as money out regardless of the amount's sign.
const saleType = "Sale"

// RawTransaction is one element of an imported batch. Field names follow the
// analysis service's top_transactions objects; Amount stays untyped because
// sources send both numbers and strings.
type RawTransaction struct {
	Description     string `json:"description"`
	Amount          any    `json:"amount"`
	Category        string `json:"category"`
	TransactionDate string `json:"transactionDate"`
	Date            string `json:"date"`
	Type            string `json:"type"`
	PostDate        string `json:"postDate"`
	Merchant        string `json:"merchant"`
	Location        string `json:"location"`
}

// UnmarshalJSON keeps numeric amounts exact by decoding them as json.Number.
func (r *RawTransaction) UnmarshalJSON(data []byte) error {
	type plain RawTransaction
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*r = RawTransaction(p)
	return nil
}

// FormInput is a local "add transaction" submission.
type FormInput struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Type        string `json:"type"`
}

// DefaultFormInput is the blank form state: expense in Food.
func DefaultFormInput() FormInput {
	return FormInput{Category: "Food", Type: string(KindExpense)}
}

// Normalizer turns raw or form input into canonical records.
type Normalizer struct {
	// Now supplies the clock for default dates and generated ids.
	Now func() time.Time

	mu     sync.Mutex
	lastID int64
}

func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

func (n *Normalizer) now() time.Time {
	if n == nil || n.Now == nil {
		return time.Now()
	}
	return n.Now()
}

// Normalize converts one imported row. It never fails: missing or malformed
// fields are replaced by defaults.
func (n *Normalizer) Normalize(raw RawTransaction, index int) TransactionRecord {
	parsed := ParseAmount(raw.Amount)

	kind := KindIncome
	if parsed.IsNegative() || raw.Type == saleType {
		kind = KindExpense
	}

	desc := strings.TrimSpace(raw.Description)
	if desc == "" {
		desc = UnknownDescription
	}
	category := strings.TrimSpace(raw.Category)
	if category == "" {
		category = Uncategorized
	}
	date := strings.TrimSpace(raw.TransactionDate)
	if date == "" {
		date = strings.TrimSpace(raw.Date)
	}
	if date == "" {
		date = n.now().Format(isoDate)
	}
	merchant := strings.TrimSpace(raw.Merchant)
	if merchant == "" {
		merchant = strings.TrimSpace(raw.Description)
	}

	return TransactionRecord{
		ID:          "imported-" + strconv.Itoa(index),
		Description: desc,
		Amount:      parsed.Abs(),
		Category:    category,
		Date:        date,
		Kind:        kind,
		Merchant:    merchant,
		Location:    strings.TrimSpace(raw.Location),
		PostDate:    strings.TrimSpace(raw.PostDate),
	}
}

func (n *Normalizer) NormalizeBatch(raws []RawTransaction) []TransactionRecord {
	out := make([]TransactionRecord, 0, len(raws))
	for i, raw := range raws {
		out = append(out, n.Normalize(raw, i))
	}
	return out
}

// FromForm builds a record from a local submission. ok is false when the
// description or amount is missing or the amount is not a number; such
// submissions are dropped without an error.
func (n *Normalizer) FromForm(in FormInput) (TransactionRecord, bool) {
	desc := strings.TrimSpace(in.Description)
	amountStr := strings.TrimSpace(in.Amount)
	if desc == "" || amountStr == "" {
		return TransactionRecord{}, false
	}
	amount, err := ParseMagnitude(amountStr)
	if err != nil {
		return TransactionRecord{}, false
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = Uncategorized
	}

	now := n.now()
	return TransactionRecord{
		ID:          n.nextID(now),
		Description: desc,
		Amount:      amount,
		Category:    category,
		Date:        now.Format(isoDate),
		Kind:        ParseKind(in.Type),
	}, true
}

// nextID returns a millisecond timestamp id, bumped when two submissions land
// in the same millisecond.
func (n *Normalizer) nextID(now time.Time) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := now.UnixMilli()
	if id <= n.lastID {
		id = n.lastID + 1
	}
	n.lastID = id
	return strconv.FormatInt(id, 10)
}

// Totals returns income, expense and balance for a record list.
func Totals(records []TransactionRecord) (income, expense, balance decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, r := range records {
		switch r.Kind {
		case KindIncome:
			income = income.Add(r.Amount)
		case KindExpense:
			expense = expense.Add(r.Amount)
		}
	}
	return income, expense, income.Sub(expense)
}
