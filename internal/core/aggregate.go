package core

import "github.com/shopspring/decimal"

// Tier thresholds, in percent of budget. Presentation policy only.
const (
	NearLimitPercent  = 75.0
	OverBudgetPercent = 100.0
	// DisplayCeiling caps the value used for progress bars.
	DisplayCeiling = 100.0
)

const (
	TierNominal    Tier = "nominal"
	TierNearLimit  Tier = "near_limit"
	TierOverBudget Tier = "over_budget"
	TierNoBudget   Tier = "no_budget"
)

var hundred = decimal.NewFromInt(100)

type (
	Tier string

	CategorySpend struct {
		Name              string
		Icon              string
		Budget            decimal.Decimal
		Spent             decimal.Decimal
		Percentage        float64
		DisplayPercentage float64
		Tier              Tier
		HasBudget         bool
		Insights          []string
	}

	Summary struct {
		TotalIncome  decimal.Decimal
		TotalExpense decimal.Decimal
		Balance      decimal.Decimal
		Categories   []CategorySpend
	}
)

// TierFor maps a spend percentage to its warning tier.
func TierFor(pct float64) Tier {
	switch {
	case pct > OverBudgetPercent:
		return TierOverBudget
	case pct > NearLimitPercent:
		return TierNearLimit
	default:
		return TierNominal
	}
}

// Aggregate computes totals and per-budget spend. Records whose category
// matches no budget still count toward the totals.
func Aggregate(records []TransactionRecord, budgets []CategoryBudget) Summary {
	income, expense, balance := Totals(records)

	spent := make(map[string]decimal.Decimal, len(budgets))
	for _, r := range records {
		if r.Kind != KindExpense {
			continue
		}
		spent[r.Category] = spent[r.Category].Add(r.Amount)
	}

	cats := make([]CategorySpend, 0, len(budgets))
	for _, b := range budgets {
		cats = append(cats, categorySpend(b, spent[b.Name]))
	}

	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      balance,
		Categories:   cats,
	}
}

func categorySpend(b CategoryBudget, spent decimal.Decimal) CategorySpend {
	cs := CategorySpend{
		Name:     b.Name,
		Icon:     b.Icon,
		Budget:   b.Budget,
		Spent:    spent,
		Insights: b.Insights,
	}
	if !b.Budget.IsPositive() {
		// No ceiling to measure against.
		cs.Tier = TierNoBudget
		return cs
	}
	pct := spent.Mul(hundred).Div(b.Budget).InexactFloat64()
	cs.HasBudget = true
	cs.Percentage = pct
	cs.DisplayPercentage = min(pct, DisplayCeiling)
	cs.Tier = TierFor(pct)
	return cs
}

// Category returns the spend entry with the given name.
func (s Summary) Category(name string) (CategorySpend, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return CategorySpend{}, false
}
