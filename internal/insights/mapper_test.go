package insights

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
)

const samplePayload = `{
  "top_transactions": [
    {"description": "Whole Foods", "amount": "-42.50", "transactionDate": "04/02/2024", "category": "Groceries"},
    {"description": "Payroll", "amount": 2500},
    "not an object"
  ],
  "actions": {
    "categorical": [
      {"type": "Meals", "points": ["Eat in more often", 7]},
      {"type": "travel"},
      {"type": "pets", "points": ["Vet visits add up"]},
      42
    ],
    "general": [
      {"title": "Overspending", "description": "Dining is high", "type": "WARNING"},
      {"title": "Nice", "description": "Saved 10%", "type": "achievement"},
      {"title": "Hmm", "description": "Odd", "type": "Observation"}
    ]
  }
}`

func testMapper() *Mapper {
	return NewMapper(&core.Normalizer{Now: func() time.Time {
		return time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)
	}})
}

func TestMapCategoryTable(t *testing.T) {
	cases := []struct {
		key    string
		name   string
		budget int64
		icon   string
	}{
		{"meals", "Food & Drink", 100, "food"},
		{"GROCERIES", "Groceries", 200, "cart-outline"},
		{" Travel ", "Travel", 150, "airplane"},
		{"entertainment", "Entertainment", 50, "movie"},
		{"pets", "None", 0, "food"},
		{"", "None", 0, "food"},
	}
	for _, tc := range cases {
		got := MapCategory(CategoricalEntry{Type: tc.key})
		if got.Name != tc.name || !got.Budget.Equal(decimal.NewFromInt(tc.budget)) || got.Icon != tc.icon {
			t.Fatalf("MapCategory(%q) = %+v", tc.key, got)
		}
		if got.Insights == nil {
			t.Fatalf("MapCategory(%q) returned nil insights", tc.key)
		}
	}
}

func TestMapInsightKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind core.InsightKind
		icon string
	}{
		{"warning", core.InsightWarning, "alert-circle"},
		{"Tip", core.InsightTip, "lightbulb"},
		{"ACHIEVEMENT", core.InsightAchievement, "trophy"},
		{"observation", core.InsightNeutral, "info"},
		{"", core.InsightNeutral, "info"},
	}
	for _, tc := range cases {
		got := MapInsight(GeneralEntry{Title: "t", Description: "d", Type: tc.raw})
		if got.Kind != tc.kind || got.Icon != tc.icon {
			t.Fatalf("MapInsight(%q) = %+v", tc.raw, got)
		}
		if got.Title != "t" || got.Description != "d" || got.RawKind != tc.raw {
			t.Fatalf("text fields must be preserved: %+v", got)
		}
	}
}

func TestMapRawValidPayload(t *testing.T) {
	res := testMapper().MapRaw([]byte(samplePayload))
	if res.Fallback {
		t.Fatalf("valid payload should not fall back")
	}
	if len(res.Categories) != 3 {
		t.Fatalf("expected 3 categories (non-object skipped), got %d", len(res.Categories))
	}
	if res.Categories[0].Name != "Food & Drink" || len(res.Categories[0].Insights) != 1 {
		t.Fatalf("unexpected first category: %+v", res.Categories[0])
	}
	if res.Categories[2].Name != "None" || res.Categories[2].Insights[0] != "Vet visits add up" {
		t.Fatalf("unknown key should be absorbed: %+v", res.Categories[2])
	}
	if len(res.Insights) != 3 || res.Insights[2].RawKind != "Observation" {
		t.Fatalf("unexpected insights: %+v", res.Insights)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(res.Transactions))
	}
	first := res.Transactions[0]
	if first.ID != "imported-0" || first.Kind != core.KindExpense || !first.Amount.Equal(decimal.RequireFromString("42.5")) {
		t.Fatalf("unexpected first transaction: %+v", first)
	}
}

func TestMapRawFallback(t *testing.T) {
	cases := map[string]string{
		"missing actions":      `{"top_transactions": []}`,
		"actions not object":   `{"actions": []}`,
		"categorical missing":  `{"actions": {"general": []}}`,
		"general wrong type":   `{"actions": {"categorical": [], "general": {}}}`,
		"categorical null":     `{"actions": {"categorical": null, "general": []}}`,
		"not json":             `<html>502</html>`,
		"empty":                ``,
		"top-level json array": `[1,2,3]`,
	}
	for name, body := range cases {
		res := testMapper().MapRaw([]byte(body))
		if !res.Fallback {
			t.Fatalf("%s: expected fallback", name)
		}
		if len(res.Categories) == 0 || len(res.Insights) == 0 {
			t.Fatalf("%s: fallback collections must be populated", name)
		}
		if res.Transactions == nil {
			t.Fatalf("%s: transactions must not be nil", name)
		}
	}
}

func TestMapAbsentPayload(t *testing.T) {
	var m Mapper
	res := m.Map(Payload{})
	if !res.Fallback || len(res.Categories) != len(FallbackCategories()) {
		t.Fatalf("zero payload should map to the fallback: %+v", res)
	}
}

func TestFallbackIsFreshCopy(t *testing.T) {
	a := FallbackCategories()
	a[0].Name = "changed"
	if FallbackCategories()[0].Name == "changed" {
		t.Fatalf("fallback must not share backing storage")
	}
}

func TestValidPayloadWithEmptyActions(t *testing.T) {
	res := testMapper().MapRaw([]byte(`{"actions": {"categorical": [], "general": []}}`))
	if res.Fallback {
		t.Fatalf("empty but well-formed actions are valid")
	}
	if res.Categories == nil || res.Insights == nil {
		t.Fatalf("collections must be non-nil")
	}
}
