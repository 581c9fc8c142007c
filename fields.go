package kvo

import "github.com/zoobzio/capitan"

// Field keys for kvo events.
var (
	// KeyProperty is the property key a signal refers to.
	KeyProperty = capitan.NewStringKey("property")

	// KeyReason explains why a change was dropped.
	KeyReason = capitan.NewStringKey("reason")

	// KeyExpectedType is the Go type a typed observer expected.
	KeyExpectedType = capitan.NewStringKey("expected_type")

	// KeyActualType is the dynamic type that arrived instead.
	KeyActualType = capitan.NewStringKey("actual_type")

	// KeyState is the current state of a Binding.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyApplied is the number of properties a document assignment touched.
	KeyApplied = capitan.NewIntKey("applied")
)

// Reasons reported with ChangeDropped.
const (
	ReasonForeignTarget = "foreign_target"
	ReasonNoDelegate    = "no_delegate"
	ReasonUnknownKey    = "unknown_key"
	ReasonStopped       = "stopped"
)
