package kvo

import (
	"context"
	"fmt"
	"reflect"
	"runtime"

	"github.com/zoobzio/capitan"
)

// ObserverOption configures a KeyObserver or TargetObserver.
type ObserverOption func(*observerConfig)

type observerConfig struct {
	initial bool
}

// WithInitial delivers the current value of each observed key once, during
// construction, before any real change.
func WithInitial() ObserverOption {
	return func(c *observerConfig) {
		c.initial = true
	}
}

// subscription is the part shared by the observer wrappers: the proxy, the
// delegate that only the wrapper keeps alive, and the cleanup that stops the
// proxy once the wrapper is unreachable.
type subscription struct {
	proxy    *Proxy
	delegate *Delegate
	cleanup  runtime.Cleanup
	stopped  bool
}

// subscribe creates and resumes a proxy for keys. If any key fails to
// register, the keys that did register are released again.
func subscribe(target *Object, keys []string, fn func(Change), opts []ObserverOption) (subscription, error) {
	if target == nil {
		return subscription{}, ErrNilTarget
	}
	if len(keys) == 0 {
		return subscription{}, ErrNoKeys
	}

	cfg := &observerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := subscription{
		proxy:    NewProxy(target, keys...),
		delegate: NewDelegate(fn),
	}
	s.proxy.SetDelegate(s.delegate)

	if err := s.proxy.Resume(); err != nil {
		_ = s.proxy.Stop() //nolint:errcheck // Resume error is the one worth reporting
		return subscription{}, fmt.Errorf("failed to observe: %w", err)
	}

	// Initial values go out only once every key is registered, so a failed
	// constructor never calls the handler.
	if cfg.initial {
		s.proxy.replayInitial()
	}
	return s, nil
}

// attach ties the proxy's lifetime to owner. The cleanup receives only the
// proxy, which never references owner, so owner can still be collected.
func attach[W any](owner *W, s *subscription) {
	s.cleanup = runtime.AddCleanup(owner, stopProxy, s.proxy)
}

func stopProxy(p *Proxy) {
	_ = p.Stop() //nolint:errcheck // nobody to report to from a cleanup
}

// stop releases the subscription once. Later calls return nil.
func (s *subscription) stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.cleanup.Stop()
	err := s.proxy.Stop()
	s.delegate = nil
	return err
}

// convert asserts v to T. Absent values and values of another dynamic type
// both come back as nil; the latter is reported through ValueTypeMismatch.
func convert[T any](key string, v any) *T {
	if v == nil {
		return nil
	}
	t, ok := v.(T)
	if !ok {
		capitan.Emit(context.Background(), ValueTypeMismatch,
			KeyProperty.Field(key),
			KeyExpectedType.Field(reflect.TypeFor[T]().String()),
			KeyActualType.Field(reflect.TypeOf(v).String()),
		)
		return nil
	}
	return &t
}
