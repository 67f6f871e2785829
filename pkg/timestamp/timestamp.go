// Package timestamp provides epoch-second time utilities for the document
// wire format. Documents carry `time` as floating-point seconds since the
// Unix epoch, matching the convention of the experiment-control systems
// this module interoperates with.
package timestamp

import "time"

// Now returns the current time as floating-point epoch seconds.
func Now() float64 {
	return ToSeconds(time.Now())
}

// ToSeconds converts a time.Time to floating-point epoch seconds.
func ToSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

// ToTime converts floating-point epoch seconds to a time.Time.
// A zero timestamp returns the zero time.
func ToTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

// Format renders epoch seconds as an RFC3339 string for display.
// A zero timestamp returns the empty string.
func Format(seconds float64) string {
	if seconds == 0 {
		return ""
	}
	return ToTime(seconds).UTC().Format(time.RFC3339)
}
