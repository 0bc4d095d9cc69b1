package insights

import (
	"strings"

	"github.com/shopspring/decimal"

	"smartfinance/internal/core"
)

type categoryDef struct {
	name   string
	budget int64
	icon   string
}

var categoryTable = map[string]categoryDef{
	"meals":         {name: "Food & Drink", budget: 100, icon: "food"},
	"groceries":     {name: "Groceries", budget: 200, icon: "cart-outline"},
	"travel":        {name: "Travel", budget: 150, icon: "airplane"},
	"entertainment": {name: "Entertainment", budget: 50, icon: "movie"},
}

// unknownCategory absorbs any key missing from the table.
var unknownCategory = categoryDef{name: "None", budget: 0, icon: "food"}

var insightIcons = map[core.InsightKind]string{
	core.InsightWarning:     "alert-circle",
	core.InsightTip:         "lightbulb",
	core.InsightAchievement: "trophy",
}

const neutralIcon = "info"

// Result is the display-ready output of one mapping pass. Collections are
// never nil.
type Result struct {
	Categories   []core.CategoryBudget
	Insights     []core.InsightNote
	Transactions []core.TransactionRecord
	// Fallback is set when placeholders replaced an invalid payload.
	Fallback bool
}

// MapCategory looks the raw type key up case-insensitively.
func MapCategory(raw CategoricalEntry) core.CategoryBudget {
	def, ok := categoryTable[strings.ToLower(strings.TrimSpace(raw.Type))]
	if !ok {
		def = unknownCategory
	}
	points := raw.Points
	if points == nil {
		points = []string{}
	}
	return core.CategoryBudget{
		Name:     def.name,
		Budget:   decimal.NewFromInt(def.budget),
		Icon:     def.icon,
		Insights: points,
	}
}

// MapInsight keeps title, description and the raw kind string untouched.
func MapInsight(raw GeneralEntry) core.InsightNote {
	kind := core.InsightKind(strings.ToLower(strings.TrimSpace(raw.Type)))
	icon, ok := insightIcons[kind]
	if !ok {
		kind = core.InsightNeutral
		icon = neutralIcon
	}
	return core.InsightNote{
		Title:       raw.Title,
		Description: raw.Description,
		Kind:        kind,
		RawKind:     raw.Type,
		Icon:        icon,
	}
}

// Mapper turns decoded payloads into a Result. The zero value is usable.
type Mapper struct {
	Normalizer *core.Normalizer
}

func NewMapper(n *core.Normalizer) *Mapper {
	return &Mapper{Normalizer: n}
}

func (m *Mapper) normalizer() *core.Normalizer {
	if m == nil || m.Normalizer == nil {
		return core.NewNormalizer()
	}
	return m.Normalizer
}

// Map never fails. Imported transactions are normalized even when the actions
// part of the payload had to be replaced by placeholders.
func (m *Mapper) Map(p Payload) Result {
	res := Result{Transactions: m.normalizer().NormalizeBatch(p.Transactions)}
	if !p.Valid {
		res.Categories = FallbackCategories()
		res.Insights = FallbackInsights()
		res.Fallback = true
		return res
	}

	res.Categories = make([]core.CategoryBudget, 0, len(p.Categorical))
	for _, c := range p.Categorical {
		res.Categories = append(res.Categories, MapCategory(c))
	}
	res.Insights = make([]core.InsightNote, 0, len(p.General))
	for _, g := range p.General {
		res.Insights = append(res.Insights, MapInsight(g))
	}
	return res
}

// MapRaw decodes and maps in one step; undecodable bytes yield the fallback.
func (m *Mapper) MapRaw(data []byte) Result {
	p, err := DecodePayload(data)
	if err != nil {
		return m.Map(Payload{})
	}
	return m.Map(p)
}

// FallbackCategories returns a fresh copy of the placeholder budgets, sized
// for the sample transaction list.
func FallbackCategories() []core.CategoryBudget {
	return []core.CategoryBudget{
		{Name: "Food", Budget: decimal.NewFromInt(500), Icon: "food", Insights: []string{}},
		{Name: "Housing", Budget: decimal.NewFromInt(2000), Icon: "home", Insights: []string{}},
		{Name: "Transport", Budget: decimal.NewFromInt(200), Icon: "car", Insights: []string{}},
		{Name: "Entertainment", Budget: decimal.NewFromInt(50), Icon: "movie", Insights: []string{}},
		{Name: "Shopping", Budget: decimal.NewFromInt(150), Icon: "shopping", Insights: []string{}},
	}
}

func FallbackInsights() []core.InsightNote {
	return []core.InsightNote{
		{
			Title:       "Import a statement",
			Description: "Upload a CSV export from your bank to get personalised spending insights.",
			Kind:        core.InsightTip,
			RawKind:     string(core.InsightTip),
			Icon:        insightIcons[core.InsightTip],
		},
		{
			Title:       "Watch your food budget",
			Description: "Food is usually the fastest growing category. Check it weekly.",
			Kind:        core.InsightWarning,
			RawKind:     string(core.InsightWarning),
			Icon:        insightIcons[core.InsightWarning],
		},
	}
}
