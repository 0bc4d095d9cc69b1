// Package insights decodes analysis-service payloads and maps them onto
// display-ready categories and insight notes.
package insights

import (
	"bytes"
	"encoding/json"
	"fmt"

	"smartfinance/internal/core"
)

type (
	// CategoricalEntry is one element of actions.categorical.
	CategoricalEntry struct {
		Type   string   `json:"type"`
		Points []string `json:"points"`
	}

	// GeneralEntry is one element of actions.general.
	GeneralEntry struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}

	// Payload is the validated form of an /analyze_spending response. Valid is
	// false when the actions structure is missing or has the wrong shape; the
	// mapper then substitutes placeholders.
	Payload struct {
		Categorical  []CategoricalEntry
		General      []GeneralEntry
		Transactions []core.RawTransaction
		Valid        bool
	}
)

// DecodePayload validates the loosely typed payload field by field. It only
// fails when data is not a JSON object; every structural problem below the top
// level degrades to Valid=false or a skipped element.
func DecodePayload(data []byte) (Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Payload{}, fmt.Errorf("decode analysis payload: %w", err)
	}

	var p Payload
	if raw, ok := top["top_transactions"]; ok {
		p.Transactions = decodeTransactions(raw)
	}

	actionsRaw, ok := top["actions"]
	if !ok {
		return p, nil
	}
	var actions map[string]json.RawMessage
	if err := json.Unmarshal(actionsRaw, &actions); err != nil || actions == nil {
		return p, nil
	}

	categorical, okC := decodeArray(actions["categorical"])
	general, okG := decodeArray(actions["general"])
	if !okC || !okG {
		return p, nil
	}

	p.Categorical = make([]CategoricalEntry, 0, len(categorical))
	for _, el := range categorical {
		if e, ok := decodeCategorical(el); ok {
			p.Categorical = append(p.Categorical, e)
		}
	}
	p.General = make([]GeneralEntry, 0, len(general))
	for _, el := range general {
		if e, ok := decodeGeneral(el); ok {
			p.General = append(p.General, e)
		}
	}
	p.Valid = true
	return p, nil
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func decodeTransactions(raw json.RawMessage) []core.RawTransaction {
	elems, ok := decodeArray(raw)
	if !ok {
		return nil
	}
	out := make([]core.RawTransaction, 0, len(elems))
	for _, el := range elems {
		var rt core.RawTransaction
		if err := json.Unmarshal(el, &rt); err != nil {
			continue
		}
		out = append(out, rt)
	}
	return out
}

// decodeCategorical accepts any object; a non-string type is treated as
// missing and non-string points are dropped.
func decodeCategorical(raw json.RawMessage) (CategoricalEntry, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return CategoricalEntry{}, false
	}
	e := CategoricalEntry{Type: stringField(fields, "type"), Points: []string{}}
	if pts, ok := decodeArray(fields["points"]); ok {
		for _, pt := range pts {
			var s string
			if json.Unmarshal(pt, &s) == nil {
				e.Points = append(e.Points, s)
			}
		}
	}
	return e, true
}

func decodeGeneral(raw json.RawMessage) (GeneralEntry, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return GeneralEntry{}, false
	}
	return GeneralEntry{
		Title:       stringField(fields, "title"),
		Description: stringField(fields, "description"),
		Type:        stringField(fields, "type"),
	}, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
