package kvo

// KeyObserver delivers changes of a single property as typed old/new pairs.
//
// Observation starts in NewKeyObserver and ends with Stop, or when the
// KeyObserver becomes unreachable and is collected. Keep a reference for as
// long as changes should be delivered.
type KeyObserver[T any] struct {
	key string
	sub subscription
}

// NewKeyObserver starts observing key on target.
//
// The handler runs once per change, synchronously on the goroutine that
// changed the property. Each side of the pair is nil when the value is
// absent or is not a T.
//
// Example:
//
//	obs, err := kvo.NewKeyObserver[int](player, "score", func(prev, curr *int) {
//	    if curr != nil {
//	        fmt.Println("score is now", *curr)
//	    }
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Stop()
func NewKeyObserver[T any](target *Object, key string, handler func(prev, curr *T), opts ...ObserverOption) (*KeyObserver[T], error) {
	sub, err := subscribe(target, []string{key}, func(c Change) {
		handler(convert[T](c.Key, c.Old), convert[T](c.Key, c.New))
	}, opts)
	if err != nil {
		return nil, err
	}

	o := &KeyObserver[T]{key: key, sub: sub}
	attach(o, &o.sub)
	return o, nil
}

// Key returns the observed property key.
func (o *KeyObserver[T]) Key() string {
	return o.key
}

// Stop ends observation. The handler is not called again after Stop
// returns. Calling Stop more than once is allowed.
func (o *KeyObserver[T]) Stop() error {
	return o.sub.stop()
}
