// Package core provides the canonical transaction model and the pure
// functions that derive display data from it.
//
// This file contains amount parsing. Import batches go through ParseAmount,
// which never fails; form input goes through ParseMagnitude, which reports
// bad input so the submission can be ignored.
package core

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a loosely typed amount into a signed decimal.
//
// Strings may carry surrounding whitespace, a leading currency symbol, thousands
// separators and a decimal comma. Anything that cannot be read as a number
// yields zero.
//
// Examples:
//
//	ParseAmount("-42.50")  -> -42.5
//	ParseAmount("$1,200")  -> 1200
//	ParseAmount("12,34")   -> 12.34
//	ParseAmount("n/a")     -> 0
func ParseAmount(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case string:
		d, err := parseDecimalString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(v)
	case float32:
		return ParseAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}

// ParseMagnitude parses a user-entered amount and returns its absolute value.
func ParseMagnitude(s string) (decimal.Decimal, error) {
	d, err := parseDecimalString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Abs(), nil
}

func parseDecimalString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		// Accounting notation for negatives.
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimLeft(s, "$€£")
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}

	s = normalizeSeparators(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators turns "1,234.56", "1.234,56" and "12,34" into a plain
// dot-decimal string.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma == -1:
		return s
	case lastDot == -1:
		// Only commas: a single comma followed by exactly three digits is a
		// thousands separator, otherwise it is the decimal mark.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}
