// Package timeutil normalizes the timestamp shapes the GitHub API produces
// into plain UTC values, so stored and remote times always compare cleanly.
package timeutil

import "time"

// Layouts accepted by Parse, tried in order. GitHub sends RFC3339 with a Z
// suffix; older payloads and query parameters may carry an explicit offset,
// no offset at all, or a bare date.
var layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Parse converts a timestamp string into a UTC time. Offset-free input is
// taken to already be UTC. Malformed input reports ok=false; it never
// returns an error, so callers can treat "absent" as "needs update".
func Parse(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Normalize returns t in UTC with the monotonic clock reading stripped.
func Normalize(t time.Time) time.Time {
	return t.Round(0).UTC()
}

// After reports whether a is strictly later than b once both are normalized
// to UTC.
func After(a, b time.Time) bool {
	return Normalize(a).After(Normalize(b))
}

// Now is the single source of "current time" for stored timestamps.
func Now() time.Time {
	return Normalize(time.Now())
}
