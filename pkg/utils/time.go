package utils

import "time"

// Now returns the current time in UTC truncated to milliseconds, which is
// the precision the JSON documents round-trip with
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NowRFC3339 returns the current time formatted as RFC3339
func NowRFC3339() string {
	return Now().Format(time.RFC3339)
}
