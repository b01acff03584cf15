// Package clock abstracts the time source so release computations and
// checked-date stamping are testable.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System implements Clock using time.Now.
type System struct{}

// NewSystem creates a real clock.
func NewSystem() System {
	return System{}
}

// Now returns the current time in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a Clock frozen at a single instant, for tests.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.At
}
