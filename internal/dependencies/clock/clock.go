package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides time operations that can be faked for testing.
// Tests use clockwork.NewFakeClockAt to drive round timers deterministically.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f in its own goroutine once d has elapsed
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// New returns a Clock backed by the system clock
func New() Clock {
	return clockwork.NewRealClock()
}
