package kvo

import (
	"time"

	"github.com/zoobzio/clockz"
)

// debouncer holds the latest document until the source has been quiet for
// one window. Each hold restarts the window.
type debouncer struct {
	clock   clockz.Clock
	window  time.Duration
	timer   clockz.Timer
	pending []byte
	held    bool
}

func newDebouncer(clock clockz.Clock, window time.Duration) *debouncer {
	return &debouncer{clock: clock, window: window}
}

// hold replaces the held document with raw and restarts the window.
func (d *debouncer) hold(raw []byte) {
	d.pending = raw
	d.held = true

	if d.timer == nil {
		d.timer = d.clock.NewTimer(d.window)
		return
	}
	if !d.timer.Stop() {
		select {
		case <-d.timer.C():
		default:
		}
	}
	d.timer.Reset(d.window)
}

// fired is nil until the first hold, so selecting on it blocks.
func (d *debouncer) fired() <-chan time.Time {
	if d.timer == nil {
		return nil
	}
	return d.timer.C()
}

// take hands out the held document and clears it.
func (d *debouncer) take() ([]byte, bool) {
	raw, ok := d.pending, d.held
	d.pending, d.held = nil, false
	return raw, ok
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}
