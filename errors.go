package kvo

import "errors"

// Registration errors. These indicate misuse by the caller and are returned
// rather than swallowed.
var (
	ErrAlreadyRegistered = errors.New("observer already registered for key")
	ErrNotRegistered     = errors.New("observer not registered for key")
	ErrNoKeys            = errors.New("no property keys given")
	ErrNilTarget         = errors.New("target object is nil")
	ErrNilObserver       = errors.New("observer is nil")
	ErrStopped           = errors.New("subscription stopped")
)
