package models

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats the backend is known to emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CompareTimestamps orders a and b chronologically, returning -1, 0 or 1.
// Values that do not parse fall back to plain string comparison.
func CompareTimestamps(a, b string) int {
	ta, okA := ParseTimestamp(a)
	tb, okB := ParseTimestamp(b)
	if okA && okB {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

// Duration returns how long a session lasted, or has lasted as of now.
func (s SessionEntry) Duration(now time.Time) (time.Duration, bool) {
	start, ok := ParseTimestamp(s.LoginTime)
	if !ok {
		return 0, false
	}
	end := now
	if !s.Active() {
		if t, ok := ParseTimestamp(s.LogoutTime); ok {
			end = t
		}
	}
	if end.Before(start) {
		return 0, false
	}
	return end.Sub(start), true
}
