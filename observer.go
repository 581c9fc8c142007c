package kvo

import "time"

// Observer receives change notifications from an Object.
// Registrations are keyed by observer identity, so implementations must be
// comparable; pointer receivers are the usual choice.
type Observer interface {
	// ObserveValue is called synchronously on the goroutine that mutated
	// the property. target is the Object that reported the change.
	ObserveValue(target *Object, change Change)
}

// Options selects what a registration delivers.
type Options uint8

const (
	// ObserveOld includes the previous value in each Change.
	ObserveOld Options = 1 << iota

	// ObserveNew includes the assigned value in each Change.
	ObserveNew

	// ObserveInitial delivers one notification with the current value as
	// soon as the registration is made.
	ObserveInitial
)

// Has reports whether all flags in o are set.
func (opts Options) Has(o Options) bool { return opts&o == o }

// String returns the options as a compact flag string.
func (opts Options) String() string {
	var s string
	if opts.Has(ObserveOld) {
		s += "O"
	}
	if opts.Has(ObserveNew) {
		s += "N"
	}
	if opts.Has(ObserveInitial) {
		s += "I"
	}
	if s == "" {
		return "-"
	}
	return s
}

// ChangeKind describes what produced a Change.
type ChangeKind uint8

const (
	// KindSet is an assignment through Object.Set.
	KindSet ChangeKind = iota

	// KindUnset is a removal through Object.Unset.
	KindUnset

	// KindInitial is the synthetic notification sent for ObserveInitial.
	KindInitial
)

// String returns the kind name.
func (k ChangeKind) String() string {
	switch k {
	case KindSet:
		return "set"
	case KindUnset:
		return "unset"
	case KindInitial:
		return "initial"
	default:
		return "unknown"
	}
}

// Change is a single property notification. It only lives for the duration
// of one dispatch.
type Change struct {
	// Key is the property that changed.
	Key string

	// Old is the value before the change, or nil when the property was
	// absent or ObserveOld was not requested.
	Old any

	// New is the value after the change, or nil when the property is now
	// absent or ObserveNew was not requested.
	New any

	// Kind is the operation that produced the change.
	Kind ChangeKind

	// Time is when the Object recorded the change.
	Time time.Time
}
