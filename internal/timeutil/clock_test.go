package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))
}

func TestSecondsNanos(t *testing.T) {
	assert.InDelta(t, 0.1, Seconds(100_000_000), 1e-12)
	assert.InDelta(t, -2.5, Seconds(-2_500_000_000), 1e-12)
	assert.Equal(t, int64(1_000_000_000), Nanos(1.0))
	assert.Equal(t, int64(50_000_000), Nanos(0.05))
}

func TestFormatClock(t *testing.T) {
	ns := time.Date(2024, 5, 1, 9, 7, 3, 456_789_000, time.UTC).UnixNano()
	assert.Equal(t, "09:07:03.456", FormatClock(ns, time.UTC))
}
