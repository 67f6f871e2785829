package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	orig := time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	seconds := ToSeconds(orig)
	back := ToTime(seconds)

	// Float seconds carry sub-microsecond noise; millisecond precision is
	// what the wire format promises.
	assert.WithinDuration(t, orig, back, time.Millisecond)
}

func TestNow_Monotonicish(t *testing.T) {
	a := Now()
	b := Now()
	assert.GreaterOrEqual(t, b, a)
	assert.Greater(t, a, float64(1e9))
}

func TestZeroValues(t *testing.T) {
	assert.Equal(t, float64(0), ToSeconds(time.Time{}))
	assert.True(t, ToTime(0).IsZero())
	assert.Equal(t, "", Format(0))
}

func TestFormat(t *testing.T) {
	seconds := ToSeconds(time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC))
	assert.Equal(t, "2023-01-15T12:30:45Z", Format(seconds))
}
