// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time source used by the detector. Debounce decisions and
// scheduler delays read from it so tests can drive time by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// After waits for the duration to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time

	// NewTimer creates a Timer that sends the current time on its channel
	// after at least duration d.
	NewTimer(d time.Duration) Timer
}

// Timer represents a single event timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewTimer creates a new Timer backed by time.Timer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// MockClock is a manually advanced clock for tests. Timers created from it
// fire only when Advance or Set moves the clock past their deadline.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*mockTimer
}

// NewMockClock creates a MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the mocked duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Set moves the clock to t and fires any timers that are now due.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
	c.fire()
}

// Advance moves the clock forward by d and fires any timers that are now due.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	c.fire()
}

// Pending reports the number of timers waiting to fire. Tests use it to
// wait until a goroutine has parked on the clock before advancing it.
func (c *MockClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if t.active() {
			n++
		}
	}
	return n
}

// NextDeadline returns the earliest pending timer deadline, if any.
func (c *MockClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []time.Time
	for _, t := range c.pending {
		if t.active() {
			live = append(live, t.deadline)
		}
	}
	if len(live) == 0 {
		return time.Time{}, false
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Before(live[j]) })
	return live[0], true
}

// After returns a channel that receives the time once the clock reaches now+d.
func (c *MockClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

// NewTimer registers a timer that fires when the clock reaches now+d.
// A non-positive d fires immediately.
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	t := &mockTimer{ch: make(chan time.Time, 1), deadline: c.now.Add(d)}
	c.pending = append(c.pending, t)
	c.mu.Unlock()
	if d <= 0 {
		c.fire()
	}
	return t
}

func (c *MockClock) fire() {
	c.mu.Lock()
	now := c.now
	var keep []*mockTimer
	var due []*mockTimer
	for _, t := range c.pending {
		switch {
		case !t.active():
		case !now.Before(t.deadline):
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.pending = keep
	c.mu.Unlock()

	for _, t := range due {
		t.fire(now)
	}
}

type mockTimer struct {
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	done     bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

func (t *mockTimer) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

func (t *mockTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.ch <- now
}
