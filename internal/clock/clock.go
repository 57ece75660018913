package clock

import (
	"sync"
	"time"
)

// Clock is the wall-clock source for like and match timestamps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns the system clock, in UTC.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

// Fake is a manually advanced clock for tests. Every Now call returns a
// strictly later instant than the previous one (by Step), so timestamps
// taken in sequence never tie.
type Fake struct {
	mu   sync.Mutex
	now  time.Time
	Step time.Duration
}

// NewFake returns a fake clock starting at start, stepping one second per read.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC(), Step: time.Second}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.now
	f.now = f.now.Add(f.Step)
	return t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}
