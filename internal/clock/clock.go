// Package clock provides the relay's notion of time: an injectable wall
// clock plus parsing and formatting for the timestamp and duration formats
// the upstream feed uses.
package clock

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Clock returns the current time. Components take a Clock so replay and
// tests can pin arrival timestamps.
type Clock func() time.Time

// System is the production clock.
func System() time.Time { return time.Now().UTC() }

// isoLayouts covers the timestamp shapes seen in upstream payloads and
// capture files: RFC 3339 with offset or Z, and naive timestamps which are
// taken as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseISO parses an ISO-8601 timestamp string.
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatISO renders t as an ISO-8601 UTC string.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseDuration parses a race-duration string, either "M:SS.mmm" or
// "S.mmm", into seconds. More than one colon is not a duration (gap fields
// reuse the same slot for text such as "LAP 2").
func ParseDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Count(s, ":") > 1 {
		return 0, false
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		m, err := strconv.Atoi(s[:i])
		if err != nil || m < 0 {
			return 0, false
		}
		sec, err := strconv.ParseFloat(s[i+1:], 64)
		if err != nil || sec < 0 {
			return 0, false
		}
		return float64(m)*60 + sec, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatDuration is the inverse of ParseDuration at millisecond precision:
// "M:SS.mmm" for a minute and over, "S.mmm" below.
func FormatDuration(secs float64) string {
	ms := math.Round(secs * 1000)
	secs = ms / 1000
	if secs >= 60 {
		m := int(secs) / 60
		return fmt.Sprintf("%d:%06.3f", m, secs-float64(m*60))
	}
	return strconv.FormatFloat(secs, 'f', 3, 64)
}

// Float coerces an upstream scalar to float64. Gap strings such as "LAP 2"
// or "+1 LAP" are not numbers and report ok = false.
func Float(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}
