// Package testing provides test utilities for code built on kvo.
package testing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/kvo"
)

// Call is one recorded invocation of a typed handler.
type Call[T any] struct {
	Prev *T
	Curr *T
}

// Recorder captures the calls made to a typed handler.
// It is safe for use from multiple goroutines.
type Recorder[T any] struct {
	mu    sync.Mutex
	calls []Call[T]
}

// NewRecorder creates an empty Recorder.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Handler returns a function suitable for kvo.NewKeyObserver.
func (r *Recorder[T]) Handler() func(prev, curr *T) {
	return func(prev, curr *T) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, Call[T]{Prev: prev, Curr: curr})
	}
}

// Calls returns a copy of the recorded calls, oldest first.
func (r *Recorder[T]) Calls() []Call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call[T](nil), r.calls...)
}

// Count returns the number of recorded calls.
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// ChangeRecorder captures untyped changes, for kvo.NewTargetObserver.
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []kvo.Change
}

// NewChangeRecorder creates an empty ChangeRecorder.
func NewChangeRecorder() *ChangeRecorder {
	return &ChangeRecorder{}
}

// Handler returns a function suitable for kvo.NewTargetObserver.
func (r *ChangeRecorder) Handler() func(kvo.Change) {
	return func(c kvo.Change) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.changes = append(r.changes, c)
	}
}

// Changes returns a copy of the recorded changes, oldest first.
func (r *ChangeRecorder) Changes() []kvo.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]kvo.Change(nil), r.changes...)
}

// Keys returns the key of each recorded change, oldest first.
func (r *ChangeRecorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.changes))
	for i, c := range r.changes {
		keys[i] = c.Key
	}
	return keys
}

// RequireCall fails the test unless call i has the given sides.
// A nil prev or curr means that side must be absent.
func RequireCall[T comparable](t *testing.T, r *Recorder[T], i int, prev, curr *T) {
	t.Helper()
	calls := r.Calls()
	if i >= len(calls) {
		t.Fatalf("expected at least %d calls, got %d", i+1, len(calls))
	}
	got := calls[i]
	if !samePtr(got.Prev, prev) {
		t.Fatalf("call %d: expected prev %s, got %s", i, show(prev), show(got.Prev))
	}
	if !samePtr(got.Curr, curr) {
		t.Fatalf("call %d: expected curr %s, got %s", i, show(curr), show(got.Curr))
	}
}

// Ptr returns a pointer to v, for building expectations.
func Ptr[T any](v T) *T {
	return &v
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func show[T any](p *T) string {
	if p == nil {
		return "<absent>"
	}
	return fmt.Sprintf("%v", *p)
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the binding reaches the expected state or timeout occurs.
func WaitForState(t *testing.T, b *kvo.Binding, expected kvo.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return b.State() == expected
	})
}

// RequireState fails the test immediately if the binding is not in the expected state.
func RequireState(t *testing.T, b *kvo.Binding, expected kvo.State) {
	t.Helper()
	if got := b.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// NewTestBinding creates a sync-mode binding over a buffered channel.
// Returns the binding and a channel for sending documents.
func NewTestBinding(t *testing.T, target *kvo.Object) (*kvo.Binding, chan<- []byte) {
	t.Helper()
	ch := make(chan []byte, 10)
	b := kvo.Bind(target, kvo.NewSyncChannelSource(ch)).SyncMode()
	return b, ch
}
