package pipeline

import (
	"sync"
	"time"
)

// MotionLog is the session's append-only list of distinct event timestamps.
type MotionLog struct {
	mu      sync.RWMutex
	entries []time.Time
}

// Append records ts. Entries are kept in call order.
func (l *MotionLog) Append(ts time.Time) {
	l.mu.Lock()
	l.entries = append(l.entries, ts)
	l.mu.Unlock()
}

// Len returns the number of entries.
func (l *MotionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *MotionLog) Last() (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return time.Time{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of the log.
func (l *MotionLog) Entries() []time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]time.Time, len(l.entries))
	copy(out, l.entries)
	return out
}

// Tail returns up to n of the most recent entries, oldest first.
func (l *MotionLog) Tail(n int) []time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]time.Time, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
