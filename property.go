package kvo

// Property is a typed handle on one key of an Object.
type Property[T any] struct {
	target *Object
	key    string
}

// NewProperty returns a typed handle for key on target.
func NewProperty[T any](target *Object, key string) *Property[T] {
	return &Property[T]{target: target, key: key}
}

// Key returns the property key.
func (p *Property[T]) Key() string {
	return p.key
}

// Get returns the current value. ok is false when the property is absent
// or holds a value of another type.
func (p *Property[T]) Get() (T, bool) {
	raw, present := p.target.Get(p.key)
	if !present {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// Set assigns v, notifying observers even if v equals the current value.
func (p *Property[T]) Set(v T) {
	p.target.Set(p.key, v)
}

// Unset removes the value.
func (p *Property[T]) Unset() {
	p.target.Unset(p.key)
}

// Observe starts a KeyObserver on this property.
func (p *Property[T]) Observe(handler func(prev, curr *T), opts ...ObserverOption) (*KeyObserver[T], error) {
	return NewKeyObserver[T](p.target, p.key, handler, opts...)
}
