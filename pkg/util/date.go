package util

import (
	"strconv"
	"time"
)

// unix values at or above this are treated as milliseconds.
const unixMilliThreshold = 1_000_000_000_000

// ParseTime tries RFC3339, RFC3339Nano, unix seconds and unix milliseconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}

// UnixAuto converts a unix timestamp in seconds or milliseconds.
func UnixAuto(ts int64) time.Time {
	if ts >= unixMilliThreshold {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
