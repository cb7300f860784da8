// Package timeutil implements the canonical microsecond timestamp
// representation, interval parsing, and histogram-interval adjustment
// used across ingest and search.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BaseTime is 1971-01-01T00:00:00Z, the reference point parse_i64_to_timestamp_micros
// uses to disambiguate the unit of an int64 timestamp.
var BaseTime = time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	baseTimeNanos  = BaseTime.UnixNano()
	baseTimeMicros = BaseTime.UnixNano() / 1000
	baseTimeMillis = BaseTime.UnixNano() / 1_000_000
)

// NowMicros returns the current time in microseconds since the Unix epoch.
func NowMicros() int64 {
	return time.Now().UnixNano() / 1000
}

// ParseInt64ToTimestampMicros disambiguates the unit of v by comparing
// it against BaseTime expressed in nanos/micros/millis, and is
// monotonic within each unit band.
func ParseInt64ToTimestampMicros(v int64) int64 {
	switch {
	case v == 0:
		return NowMicros()
	case v > baseTimeNanos:
		return v / 1000
	case v > baseTimeMicros:
		return v
	case v > baseTimeMillis:
		return v * 1000
	default:
		return v * 1_000_000
	}
}

// layouts are tried in order for ParseTimestampString; all but RFC3339
// and RFC2822 are bespoke local formats this ingest path accepts.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z, // RFC2822-compatible
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000000-07:00",
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05-07:00",
}

// ParseTimestampString parses RFC3339, RFC2822, "YYYY-MM-DD HH:MM:SS",
// and their fractional/zone variants, case-insensitively accepting a
// trailing "UTC" or "CST" zone abbreviation, and returns microseconds
// since the Unix epoch. It returns an error carrying the literal
// message "invalid time format" for anything else.
func ParseTimestampString(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	normalized := trimmed
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(upper, " UTC"):
		normalized = strings.TrimSpace(trimmed[:len(trimmed)-4]) + "Z"
	case strings.HasSuffix(upper, " CST"):
		// CST here means China Standard Time, UTC+8.
		normalized = strings.TrimSpace(trimmed[:len(trimmed)-4]) + "+08:00"
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t.UnixNano() / 1000, nil
		}
	}
	return 0, fmt.Errorf("invalid time format")
}

// unitSeconds maps the single-letter interval units to their length in seconds.
var unitSeconds = map[byte]int64{
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 86400 * 7,
	'y': 86400 * 365, // y is treated as a fixed 365-day year
}

// ParseMilliseconds parses an interval string: a bare integer is
// interpreted as seconds; otherwise the string is a
// concatenation of <n><unit> terms with units ms|s|m|h|d|w|y. A
// missing unit at position 0 (i.e. the string starts with a unit
// letter with no leading digits) is an error. The result is
// milliseconds.
func ParseMilliseconds(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("invalid interval format")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n * 1000, nil
	}

	var totalMs int64
	i := 0
	for i < len(s) {
		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("invalid interval format: missing unit at position %d", start)
		}
		numStr := s[start:i]
		unitStart := i
		// "ms" is the only two-character unit.
		if i+1 < len(s) && s[i] == 'm' && s[i+1] == 's' {
			i += 2
		} else if i < len(s) {
			i++
		} else {
			return 0, fmt.Errorf("invalid interval format: missing unit")
		}
		unit := s[unitStart:i]
		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid interval format: %w", err)
		}
		switch unit {
		case "ms":
			totalMs += n
		case "s":
			totalMs += n * 1000
		default:
			secs, ok := unitSeconds[unit[0]]
			if !ok {
				return 0, fmt.Errorf("invalid interval format: unknown unit %q", unit)
			}
			totalMs += n * secs * 1000
		}
	}
	return totalMs, nil
}

// histogramLadder is the fixed ladder of acceptable histogram
// intervals, in seconds.
var histogramLadder = []int64{1, 5, 10, 15, 30, 60, 300, 600, 900, 1800, 3600, 7200, 14400, 21600, 28800, 43200, 86400}

const secondsPerDay = 86400

// ValidateAndAdjustHistogramInterval adjusts a requested histogram
// interval: if the requested interval (seconds)
// already divides, or is a multiple of, one day, it is returned
// unchanged; otherwise it is rounded up to the smallest ladder rung
// that is >= the request, capped at one day.
func ValidateAndAdjustHistogramInterval(seconds int64) int64 {
	if seconds <= 0 {
		return histogramLadder[0]
	}
	if secondsPerDay%seconds == 0 || seconds%secondsPerDay == 0 {
		return seconds
	}
	for _, rung := range histogramLadder {
		if rung >= seconds {
			return rung
		}
	}
	return secondsPerDay
}
