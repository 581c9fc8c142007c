package kvo

// TargetObserver delivers changes of several properties of one Object to a
// shared untyped handler. Compose KeyObservers instead when the properties
// need different value types.
type TargetObserver struct {
	keys []string
	sub  subscription
}

// NewTargetObserver starts observing keys on target. The handler receives
// each Change with Key set to the property that fired.
//
// Duplicate keys are not filtered: the object rejects the second
// registration and NewTargetObserver returns ErrAlreadyRegistered.
func NewTargetObserver(target *Object, keys []string, handler func(Change), opts ...ObserverOption) (*TargetObserver, error) {
	sub, err := subscribe(target, keys, handler, opts)
	if err != nil {
		return nil, err
	}

	o := &TargetObserver{keys: append([]string(nil), keys...), sub: sub}
	attach(o, &o.sub)
	return o, nil
}

// Keys returns the observed property keys.
func (o *TargetObserver) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Stop ends observation. Calling Stop more than once is allowed.
func (o *TargetObserver) Stop() error {
	return o.sub.stop()
}
