package http

import (
	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
	"smartfinance/internal/guard"
	"smartfinance/internal/insights"
	"smartfinance/internal/services"
)

// JSON shapes. Money is rendered with two decimals as a string.
type (
	transactionView struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Category    string `json:"category"`
		Date        string `json:"date"`
		DisplayDate string `json:"displayDate"`
		Type        string `json:"type"`
		Merchant    string `json:"merchant,omitempty"`
		Location    string `json:"location,omitempty"`
		Flagged     bool   `json:"flagged"`
	}

	categoryView struct {
		Name              string   `json:"name"`
		Icon              string   `json:"icon"`
		Budget            string   `json:"budget"`
		Spent             string   `json:"spent"`
		Percentage        float64  `json:"percentage"`
		DisplayPercentage float64  `json:"displayPercentage"`
		Tier              string   `json:"tier"`
		Insights          []string `json:"insights"`
	}

	insightView struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Icon        string `json:"icon"`
	}

	summaryView struct {
		TotalIncome  string `json:"totalIncome"`
		TotalExpense string `json:"totalExpense"`
		Balance      string `json:"balance"`
	}

	dashboardView struct {
		Summary      summaryView       `json:"summary"`
		Categories   []categoryView    `json:"categories"`
		Insights     []insightView     `json:"insights"`
		Transactions []transactionView `json:"transactions"`
		Selected     string            `json:"selectedCategory"`
		Draft        core.FormInput    `json:"draft"`
	}

	advisoryView struct {
		Score        float64 `json:"score"`
		Reason       string  `json:"reason,omitempty"`
		Alternatives string  `json:"alternatives,omitempty"`
		Prompt       bool    `json:"prompt"`
	}

	addResultView struct {
		Ignored     bool             `json:"ignored"`
		Transaction *transactionView `json:"transaction,omitempty"`
		Advisory    *advisoryView    `json:"advisory,omitempty"`
	}

	importView struct {
		Categories   []categoryView    `json:"categories"`
		Insights     []insightView     `json:"insights"`
		Transactions []transactionView `json:"transactions"`
		Fallback     bool              `json:"fallback"`
	}

	guardView struct {
		Armed             bool          `json:"armed"`
		CaptureIntervalMs int64         `json:"captureIntervalMs"`
		Timeline          []guard.Event `json:"timeline"`
	}

	frameView struct {
		Alert   bool         `json:"alert"`
		Summary string       `json:"summary"`
		Event   *guard.Event `json:"event,omitempty"`
	}

	errorView struct {
		Error     string `json:"error"`
		RequestID string `json:"requestId,omitempty"`
	}
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newTransactionView(r core.TransactionRecord) transactionView {
	return transactionView{
		ID:          r.ID,
		Description: r.Description,
		Amount:      money(r.Amount),
		Category:    r.Category,
		Date:        r.Date,
		DisplayDate: core.FormatDisplayDate(r.Date),
		Type:        string(r.Kind),
		Merchant:    r.Merchant,
		Location:    r.Location,
		Flagged:     r.Flagged,
	}
}

func newTransactionViews(rs []core.TransactionRecord) []transactionView {
	out := make([]transactionView, 0, len(rs))
	for _, r := range rs {
		out = append(out, newTransactionView(r))
	}
	return out
}

func newCategoryView(c core.CategorySpend) categoryView {
	notes := c.Insights
	if notes == nil {
		notes = []string{}
	}
	return categoryView{
		Name:              c.Name,
		Icon:              c.Icon,
		Budget:            money(c.Budget),
		Spent:             money(c.Spent),
		Percentage:        c.Percentage,
		DisplayPercentage: c.DisplayPercentage,
		Tier:              string(c.Tier),
		Insights:          notes,
	}
}

func newInsightViews(notes []core.InsightNote) []insightView {
	out := make([]insightView, 0, len(notes))
	for _, n := range notes {
		out = append(out, insightView{Title: n.Title, Description: n.Description, Type: string(n.Kind), Icon: n.Icon})
	}
	return out
}

func newDashboardView(d services.Dashboard) dashboardView {
	cats := make([]categoryView, 0, len(d.Summary.Categories))
	for _, c := range d.Summary.Categories {
		cats = append(cats, newCategoryView(c))
	}
	txs := make([]transactionView, 0, len(d.Transactions))
	for _, t := range d.Transactions {
		txs = append(txs, newTransactionView(t.TransactionRecord))
	}
	return dashboardView{
		Summary: summaryView{
			TotalIncome:  money(d.Summary.TotalIncome),
			TotalExpense: money(d.Summary.TotalExpense),
			Balance:      money(d.Summary.Balance),
		},
		Categories:   cats,
		Insights:     newInsightViews(d.Insights),
		Transactions: txs,
		Selected:     d.Selected,
		Draft:        d.Draft,
	}
}

func newAddResultView(res services.AddResult) addResultView {
	if res.Ignored {
		return addResultView{Ignored: true}
	}
	tv := newTransactionView(res.Transaction)
	out := addResultView{Transaction: &tv}
	if a := res.Advisory; a != nil {
		out.Advisory = &advisoryView{Score: a.Score, Reason: a.Reason, Alternatives: a.Alternatives, Prompt: a.Prompt}
	}
	return out
}

func newImportView(res insights.Result) importView {
	// Spend against imported budgets is recomputed on the dashboard.
	summary := core.Aggregate(res.Transactions, res.Categories)
	cats := make([]categoryView, 0, len(summary.Categories))
	for _, c := range summary.Categories {
		cats = append(cats, newCategoryView(c))
	}
	return importView{
		Categories:   cats,
		Insights:     newInsightViews(res.Insights),
		Transactions: newTransactionViews(res.Transactions),
		Fallback:     res.Fallback,
	}
}

func newGuardView(m *guard.Monitor) guardView {
	tl := m.Timeline()
	if tl == nil {
		tl = []guard.Event{}
	}
	return guardView{
		Armed:             m.Armed(),
		CaptureIntervalMs: guard.CaptureInterval.Milliseconds(),
		Timeline:          tl,
	}
}
