package kvo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zoobzio/clockz"
)

// registration binds one observer to one key.
type registration struct {
	observer Observer
	opts     Options
}

// Object is an observable bag of named properties. Every assignment through
// Set or Unset notifies the observers registered for that key, synchronously
// and on the calling goroutine.
//
// Notification fires on assignment, not on inequality: setting a property to
// the value it already holds still notifies, with equal Old and New.
type Object struct {
	mu        sync.RWMutex
	clock     clockz.Clock
	values    map[string]any
	observers map[string][]registration
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{
		clock:     clockz.RealClock,
		values:    make(map[string]any),
		observers: make(map[string][]registration),
	}
}

// Clock sets the clock used to timestamp changes.
// Use this with clockz.FakeClock for deterministic timestamps in tests.
func (o *Object) Clock(clock clockz.Clock) *Object {
	o.mu.Lock()
	o.clock = clock
	o.mu.Unlock()
	return o
}

// Get returns the current value of key and whether it is present.
func (o *Object) Get(key string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the present property keys in sorted order.
func (o *Object) Keys() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	keys := make([]string, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to key and notifies its observers.
func (o *Object) Set(key string, value any) {
	o.mu.Lock()
	old, had := o.values[key]
	o.values[key] = value
	regs := o.snapshot(key)
	now := o.clock.Now()
	o.mu.Unlock()

	if !had {
		old = nil
	}
	o.notify(regs, Change{Key: key, Old: old, New: value, Kind: KindSet, Time: now})
}

// Unset removes key and notifies its observers with an absent new value.
// Unsetting an absent key still notifies.
func (o *Object) Unset(key string) {
	o.mu.Lock()
	old, had := o.values[key]
	delete(o.values, key)
	regs := o.snapshot(key)
	now := o.clock.Now()
	o.mu.Unlock()

	if !had {
		old = nil
	}
	o.notify(regs, Change{Key: key, Old: old, Kind: KindUnset, Time: now})
}

// AddObserver registers observer for changes to key.
// Registering the same observer for the same key twice returns
// ErrAlreadyRegistered; the existing registration is left untouched.
func (o *Object) AddObserver(observer Observer, key string, opts Options) error {
	if observer == nil {
		return ErrNilObserver
	}

	o.mu.Lock()
	for _, r := range o.observers[key] {
		if r.observer == observer {
			o.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrAlreadyRegistered, key)
		}
	}
	o.observers[key] = append(o.observers[key], registration{observer: observer, opts: opts})
	current, present := o.values[key]
	now := o.clock.Now()
	o.mu.Unlock()

	if opts.Has(ObserveInitial) {
		change := Change{Key: key, Kind: KindInitial, Time: now}
		if present && opts.Has(ObserveNew) {
			change.New = current
		}
		observer.ObserveValue(o, change)
	}
	return nil
}

// initialChange describes the current value of key as a KindInitial change.
func (o *Object) initialChange(key string) Change {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v := o.values[key]
	return Change{Key: key, New: v, Kind: KindInitial, Time: o.clock.Now()}
}

// RemoveObserver unregisters observer from key.
// Returns ErrNotRegistered if there is no such registration.
func (o *Object) RemoveObserver(observer Observer, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	regs := o.observers[key]
	for i, r := range regs {
		if r.observer == observer {
			// Copy so snapshots handed to in-flight notifications stay intact.
			next := make([]registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			if len(next) == 0 {
				delete(o.observers, key)
			} else {
				o.observers[key] = next
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrNotRegistered, key)
}

// ObserverCount returns the number of registrations for key.
func (o *Object) ObserverCount(key string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.observers[key])
}

// snapshot returns the registrations for key. Caller must hold the lock.
// The registry never mutates a slice in place, so no copy is needed.
func (o *Object) snapshot(key string) []registration {
	return o.observers[key]
}

// notify delivers change to each registration, masking the sides that were
// not requested.
func (o *Object) notify(regs []registration, change Change) {
	for _, r := range regs {
		c := change
		if !r.opts.Has(ObserveOld) {
			c.Old = nil
		}
		if !r.opts.Has(ObserveNew) {
			c.New = nil
		}
		r.observer.ObserveValue(o, c)
	}
}
