package kvo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/zoobzio/capitan"
)

// Delegate receives the changes a Proxy demultiplexes.
// A Proxy only holds a weak reference to its delegate; whoever creates the
// delegate must keep it alive for as long as changes should be delivered.
type Delegate struct {
	fn func(Change)
}

// NewDelegate wraps fn as a Delegate.
func NewDelegate(fn func(Change)) *Delegate {
	return &Delegate{fn: fn}
}

type proxyState uint8

const (
	proxyIdle proxyState = iota
	proxyActive
	proxyStopped
)

// Proxy is the single low-level observer for a set of keys on one Object.
// It registers itself for every key, matches each incoming change against
// its key list and forwards it to its delegate.
//
// Resume and Stop must not run concurrently with each other. Once Stop has
// begun, changes still being delivered from an earlier snapshot are dropped.
type Proxy struct {
	target     *Object
	keys       []string
	opts       Options
	delegate   weak.Pointer[Delegate]
	registered []string
	state      atomic.Uint32
}

// NewProxy creates a Proxy for keys on target. It does not touch the target
// until Resume is called. Keys are not validated or deduplicated.
func NewProxy(target *Object, keys ...string) *Proxy {
	return &Proxy{
		target: target,
		keys:   append([]string(nil), keys...),
		opts:   ObserveOld | ObserveNew,
	}
}

// Initial requests an immediate notification with the current value of each
// key when Resume registers it. Must be called before Resume.
func (p *Proxy) Initial() *Proxy {
	p.opts |= ObserveInitial
	return p
}

// SetDelegate sets the delegate changes are forwarded to. Passing nil
// detaches the current delegate.
func (p *Proxy) SetDelegate(d *Delegate) {
	if d == nil {
		p.delegate = weak.Pointer[Delegate]{}
		return
	}
	p.delegate = weak.Make(d)
}

// Keys returns the keys this proxy observes.
func (p *Proxy) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Active reports whether the proxy has at least one live registration.
func (p *Proxy) Active() bool {
	return p.loadState() == proxyActive && len(p.registered) > 0
}

func (p *Proxy) loadState() proxyState {
	return proxyState(p.state.Load())
}

// Resume registers the proxy for every key.
//
// Resume is not idempotent. Calling it again while active asks the target to
// register the same keys a second time, which the target rejects with
// ErrAlreadyRegistered. Keys that do register are remembered so Stop can
// release exactly those.
func (p *Proxy) Resume() error {
	if p.loadState() == proxyStopped {
		return ErrStopped
	}
	p.state.Store(uint32(proxyActive))

	ctx := context.Background()
	var errs []error
	for _, key := range p.keys {
		if err := p.target.AddObserver(p, key, p.opts); err != nil {
			capitan.Emit(ctx, ObserverRegisterFailed,
				KeyProperty.Field(key),
				KeyError.Field(err.Error()),
			)
			errs = append(errs, err)
			continue
		}
		p.registered = append(p.registered, key)
		capitan.Emit(ctx, ObserverRegistered, KeyProperty.Field(key))
	}
	return errors.Join(errs...)
}

// Stop unregisters every key that Resume registered. It is a no-op if
// nothing is registered, and the proxy cannot be resumed afterwards.
func (p *Proxy) Stop() error {
	p.state.Store(uint32(proxyStopped))
	if len(p.registered) == 0 {
		return nil
	}

	ctx := context.Background()
	var errs []error
	for _, key := range p.registered {
		if err := p.target.RemoveObserver(p, key); err != nil {
			errs = append(errs, fmt.Errorf("unregister %q: %w", key, err))
			continue
		}
		capitan.Emit(ctx, ObserverUnregistered, KeyProperty.Field(key))
	}
	p.registered = nil
	return errors.Join(errs...)
}

// ObserveValue implements Observer.
func (p *Proxy) ObserveValue(target *Object, change Change) {
	ctx := context.Background()

	// The target may forward notices for objects this proxy never observed.
	if target != p.target {
		capitan.Emit(ctx, ChangeDropped,
			KeyProperty.Field(change.Key),
			KeyReason.Field(ReasonForeignTarget),
		)
		return
	}

	if p.loadState() == proxyStopped {
		capitan.Emit(ctx, ChangeDropped,
			KeyProperty.Field(change.Key),
			KeyReason.Field(ReasonStopped),
		)
		return
	}

	d := p.delegate.Value()
	if d == nil {
		capitan.Emit(ctx, ChangeDropped,
			KeyProperty.Field(change.Key),
			KeyReason.Field(ReasonNoDelegate),
		)
		return
	}

	for _, key := range p.keys {
		if key == change.Key {
			d.fn(change)
			capitan.Emit(ctx, ChangeDispatched, KeyProperty.Field(key))
			return
		}
	}

	capitan.Emit(ctx, ChangeDropped,
		KeyProperty.Field(change.Key),
		KeyReason.Field(ReasonUnknownKey),
	)
}

// replayInitial delivers the current value of every registered key as a
// KindInitial change.
func (p *Proxy) replayInitial() {
	for _, key := range p.registered {
		p.ObserveValue(p.target, p.target.initialChange(key))
	}
}
