package core

import (
	"strings"
	"time"
)

const displayDate = "Jan 2, 2006"

var isoLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// FormatDisplayDate renders a stored date as "Apr 12, 2024". Slash dates are
// read as MM/DD/YYYY. Input that cannot be parsed is returned unchanged.
func FormatDisplayDate(s string) string {
	t, ok := ParseRecordDate(s)
	if !ok {
		return s
	}
	return t.Format(displayDate)
}

// ParseRecordDate reads either stored date form.
func ParseRecordDate(s string) (time.Time, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, false
	}
	if strings.Contains(v, "/") {
		t, err := time.Parse("1/2/2006", v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
