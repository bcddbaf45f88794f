package billing

import "time"

// Clock supplies the current instant. It is injected so confirmation and
// reversal are deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time {
	return f()
}

// FixedClock returns a Clock that always reports t
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
