package kvo

import (
	"sync"
	"time"
)

// Failure records one document that could not be applied.
type Failure struct {
	Err  error
	Time time.Time
	Size int // raw document length in bytes
}

// failureLog keeps the most recent failures in a fixed-size ring.
// A nil log records nothing.
type failureLog struct {
	mu      sync.Mutex
	entries []Failure
	next    int
	full    bool
}

func newFailureLog(size int) *failureLog {
	if size <= 0 {
		return nil
	}
	return &failureLog{entries: make([]Failure, size)}
}

func (l *failureLog) record(f Failure) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = f
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

func (l *failureLog) reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.entries)
	l.next = 0
	l.full = false
}

// snapshot returns the recorded failures, oldest first.
func (l *failureLog) snapshot() []Failure {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		if l.next == 0 {
			return nil
		}
		return append([]Failure(nil), l.entries[:l.next]...)
	}
	out := make([]Failure, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}
