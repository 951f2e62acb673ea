package util

import (
	"strconv"
	"strings"
	"time"
)

// Layouts tolerated at store boundaries. Persisted expiry timestamps come
// from several writers over the system's history, so parsing accepts RFC3339
// (with or without zone), the plain "2006-01-02 15:04:05" form, and unix
// seconds.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries the tolerated layouts and unix seconds. Returns (t, true)
// if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	// Stray zone suffixes without offsets trip the zoneless layouts.
	trimmed := strings.TrimSuffix(s, "Z")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}
