package extraction

import (
	"strings"
	"time"
)

var hintLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// ParseTemporalHint parses a free-form temporal hint from extraction.
// "now" and "present" resolve to the episode reference time; empty or
// unparseable hints return nil rather than failing the candidate.
func ParseTemporalHint(hint string, reference time.Time) *time.Time {
	hint = strings.TrimSpace(hint)
	if hint == "" || strings.EqualFold(hint, "null") || strings.EqualFold(hint, "none") {
		return nil
	}
	if strings.EqualFold(hint, "now") || strings.EqualFold(hint, "present") ||
		strings.EqualFold(hint, "currently") {
		t := reference
		return &t
	}
	for _, layout := range hintLayouts {
		if t, err := time.Parse(layout, hint); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ResolveValidAt returns the parsed hint or falls back to the episode
// reference time, the default for facts stated without an explicit date.
func ResolveValidAt(hint string, reference time.Time) time.Time {
	if t := ParseTemporalHint(hint, reference); t != nil {
		return *t
	}
	return reference.UTC()
}
