// Package timeutil provides a testable clock and helpers for the int64
// nanosecond timestamps carried by recorded trip channels.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over wall-clock time for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually driven Clock for tests.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock fixed at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mock's current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the mock duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Seconds converts a nanosecond delta to seconds.
func Seconds(deltaNanos int64) float64 {
	return float64(deltaNanos) / 1e9
}

// Nanos converts seconds to a nanosecond delta, truncating toward zero.
func Nanos(seconds float64) int64 {
	return int64(seconds * 1e9)
}

// NanoToTime converts a nanosecond Unix timestamp to time.Time.
func NanoToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// FormatClock renders a nanosecond timestamp as local HH:MM:SS.mmm, the
// format used by the scenario list.
func FormatClock(ns int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return NanoToTime(ns).In(loc).Format("15:04:05.000")
}
