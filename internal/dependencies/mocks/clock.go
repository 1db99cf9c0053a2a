package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
)

// Epoch is the instant fake clocks start at
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Ensure the fake clock satisfies Clock
var _ clock.Clock = (*clockwork.FakeClock)(nil)

// NewFakeClock returns a fake clock set to Epoch.
// Timers registered with AfterFunc fire when the clock is advanced past them.
func NewFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}
