// Package clock abstracts wall-clock time so the scheduler can be driven
// deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose time stands still
// until Advance or Set is called; pending After channels fire as the fake
// time passes their deadline.
package clock

import "time"

// Clock is the subset of the time package the scheduler depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
