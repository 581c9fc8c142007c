package kvo

import "github.com/zoobzio/capitan"

// Subscription lifecycle signals.
var (
	// ObserverRegistered is emitted when a proxy registers for a key.
	ObserverRegistered = capitan.NewSignal(
		"kvo.observer.registered",
		"Proxy registered for property",
	)

	// ObserverRegisterFailed is emitted when the object rejects a registration.
	ObserverRegisterFailed = capitan.NewSignal(
		"kvo.observer.register.failed",
		"Proxy registration rejected",
	)

	// ObserverUnregistered is emitted when a proxy unregisters from a key.
	ObserverUnregistered = capitan.NewSignal(
		"kvo.observer.unregistered",
		"Proxy unregistered from property",
	)
)

// Dispatch signals.
var (
	// ChangeDispatched is emitted after a change reaches a delegate.
	ChangeDispatched = capitan.NewSignal(
		"kvo.change.dispatched",
		"Change delivered to delegate",
	)

	// ChangeDropped is emitted when a proxy discards a notification.
	ChangeDropped = capitan.NewSignal(
		"kvo.change.dropped",
		"Change discarded by proxy",
	)

	// ValueTypeMismatch is emitted when a typed observer receives a value
	// of another dynamic type and reports it as absent.
	ValueTypeMismatch = capitan.NewSignal(
		"kvo.value.type.mismatch",
		"Value did not match observer type",
	)
)

// Binding signals.
var (
	// BindingStarted is emitted when a Binding begins watching its source.
	BindingStarted = capitan.NewSignal(
		"kvo.binding.started",
		"Binding watching started",
	)

	// BindingStopped is emitted when a Binding stops watching.
	BindingStopped = capitan.NewSignal(
		"kvo.binding.stopped",
		"Binding watching stopped",
	)

	// BindingStateChanged is emitted when a Binding transitions between states.
	BindingStateChanged = capitan.NewSignal(
		"kvo.binding.state.changed",
		"Binding state transition",
	)

	// BindingChangeReceived is emitted when raw data arrives from the source.
	BindingChangeReceived = capitan.NewSignal(
		"kvo.binding.change.received",
		"Raw document received from source",
	)

	// BindingDecodeFailed is emitted when a document cannot be decoded.
	BindingDecodeFailed = capitan.NewSignal(
		"kvo.binding.decode.failed",
		"Document decode failed",
	)

	// BindingApplySucceeded is emitted when a document has been applied.
	BindingApplySucceeded = capitan.NewSignal(
		"kvo.binding.apply.succeeded",
		"Document applied to object",
	)
)
