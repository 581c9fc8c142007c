package kvo

import "time"

// MetricsProvider receives callbacks on Binding activity for export to
// systems such as Prometheus or StatsD.
type MetricsProvider interface {
	// OnStateChange is called when the Binding transitions between states.
	OnStateChange(from, to State)

	// OnApply is called after a document is applied. changed is the number
	// of properties that were set or unset.
	OnApply(changed int, duration time.Duration)

	// OnDecodeFailure is called when a document cannot be decoded.
	OnDecodeFailure(duration time.Duration)

	// OnChangeReceived is called when a raw document arrives from the source.
	OnChangeReceived()
}

// NoOpMetricsProvider implements MetricsProvider with empty methods.
// Embed it to implement only the callbacks you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)        {}
func (NoOpMetricsProvider) OnApply(_ int, _ time.Duration)  {}
func (NoOpMetricsProvider) OnDecodeFailure(_ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()               {}
