package kvo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// DefaultDebounce is the default debounce duration for document processing.
const DefaultDebounce = 100 * time.Millisecond

// Binding keeps the properties of an Object in line with the documents
// emitted by a Source. Each document is decoded into key/value pairs; keys
// that are new or whose value differs from the previous document are Set,
// and keys that disappeared are Unset. Observers of the Object therefore see
// ordinary property changes.
//
// A document that fails to decode leaves the Object untouched and moves the
// Binding to StateDegraded (or StateEmpty if nothing was ever applied).
type Binding struct {
	target         *Object
	source         Source
	codec          Codec
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	prune          bool
	clock          clockz.Clock
	metrics        MetricsProvider
	onStop         func(State)
	failures       *failureLog

	state     atomic.Int32
	current   atomic.Pointer[map[string]any]
	lastError atomic.Pointer[error]

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive documents
	changes <-chan []byte
}

// Bind creates a Binding that applies documents from source to target.
//
// Example:
//
//	obj := kvo.NewObject()
//	b := kvo.Bind(obj, file.New("/etc/myapp/flags.yaml")).
//	    Codec(kvo.YAMLCodec{}).
//	    Debounce(200 * time.Millisecond)
//
//	if err := b.Start(ctx); err != nil {
//	    log.Printf("initial document failed: %v", err)
//	}
func Bind(target *Object, source Source) *Binding {
	b := &Binding{
		target:   target,
		source:   source,
		codec:    AutoCodec{},
		debounce: DefaultDebounce,
		prune:    true,
		clock:    clockz.RealClock,
		metrics:  NoOpMetricsProvider{},
	}
	b.state.Store(int32(StateLoading))
	return b
}

// Debounce sets how long to wait for the source to go quiet before applying
// the latest document. Default: 100ms. Must be called before Start().
func (b *Binding) Debounce(d time.Duration) *Binding {
	b.debounce = d
	return b
}

// SyncMode disables the background goroutine. Documents after the first are
// only applied by calling Process, which keeps tests deterministic.
// Must be called before Start().
func (b *Binding) SyncMode() *Binding {
	b.syncMode = true
	return b
}

// Clock sets the clock used for debounce and timing.
// Must be called before Start().
func (b *Binding) Clock(clock clockz.Clock) *Binding {
	b.clock = clock
	return b
}

// Codec sets the document codec. Default: AutoCodec.
// Must be called before Start().
func (b *Binding) Codec(codec Codec) *Binding {
	b.codec = codec
	return b
}

// StartupTimeout bounds how long Start waits for the first document.
// Default: no timeout. Must be called before Start().
func (b *Binding) StartupTimeout(d time.Duration) *Binding {
	b.startupTimeout = d
	return b
}

// Metrics sets a metrics provider. Must be called before Start().
func (b *Binding) Metrics(provider MetricsProvider) *Binding {
	b.metrics = provider
	return b
}

// OnStop sets a callback invoked with the final state when watching ends.
// Must be called before Start().
func (b *Binding) OnStop(fn func(State)) *Binding {
	b.onStop = fn
	return b
}

// Prune controls whether keys missing from a new document are unset.
// Default: true. Must be called before Start().
func (b *Binding) Prune(enabled bool) *Binding {
	b.prune = enabled
	return b
}

// FailureHistory keeps the last n decode failures, readable via Failures.
// The history is cleared when a document applies. Default: disabled.
// Must be called before Start().
func (b *Binding) FailureHistory(n int) *Binding {
	b.failures = newFailureLog(n)
	return b
}

// State returns the current state of the Binding.
func (b *Binding) State() State {
	return State(b.state.Load())
}

// Current returns a copy of the last applied document and true, or nil and
// false if no document has been applied.
func (b *Binding) Current() (map[string]any, bool) {
	ptr := b.current.Load()
	if ptr == nil {
		return nil, false
	}
	return maps.Clone(*ptr), true
}

// LastError returns the last error encountered, or nil.
func (b *Binding) LastError() error {
	ptr := b.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Failures returns recent decode failures, oldest first, or nil if
// FailureHistory was not set.
func (b *Binding) Failures() []Failure {
	return b.failures.snapshot()
}

// Start begins watching the source. It blocks until the first document has
// been processed, then continues watching in the background until ctx ends.
//
// If the first document fails to decode, Start returns the error but keeps
// watching for a valid one. Start can only be called once.
func (b *Binding) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("binding already started")
	}
	b.started = true
	b.mu.Unlock()

	if b.target == nil {
		return ErrNilTarget
	}

	capitan.Emit(ctx, BindingStarted,
		KeyDebounce.Field(b.debounce),
	)

	changes, err := b.source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start source: %w", err)
	}

	raw, err := b.first(ctx, changes)
	if err != nil {
		return err
	}
	b.received(ctx)
	initialErr := b.process(ctx, raw)

	if b.syncMode {
		b.changes = changes
	} else {
		go b.watch(ctx, changes)
	}
	return initialErr
}

// first waits for the initial document, bounded by the startup timeout.
func (b *Binding) first(ctx context.Context, changes <-chan []byte) ([]byte, error) {
	if b.startupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = b.clock.WithTimeout(ctx, b.startupTimeout)
		defer cancel()
	}

	select {
	case raw, ok := <-changes:
		if !ok {
			return nil, errors.New("source closed before emitting initial document")
		}
		return raw, nil
	case <-ctx.Done():
		if b.startupTimeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("startup timeout: source did not emit within %v", b.startupTimeout)
		}
		return nil, ctx.Err()
	}
}

// Process applies the next pending document in sync mode.
// It returns false if the Binding is not in sync mode, no document is
// waiting, or the source has closed.
func (b *Binding) Process(ctx context.Context) bool {
	if !b.syncMode {
		return false
	}

	select {
	case raw, ok := <-b.changes:
		if !ok {
			return false
		}
		b.received(ctx)
		_ = b.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	default:
		return false
	}
}

func (b *Binding) received(ctx context.Context) {
	capitan.Emit(ctx, BindingChangeReceived)
	b.metrics.OnChangeReceived()
}

// process decodes one document and applies it to the target.
func (b *Binding) process(ctx context.Context, raw []byte) error {
	start := b.clock.Now()
	oldState := b.State()

	doc, err := b.codec.Decode(raw)
	if err != nil {
		b.setError(err)
		b.failures.record(Failure{Err: err, Time: start, Size: len(raw)})
		b.transitionState(ctx, oldState, b.failureState())
		capitan.Emit(ctx, BindingDecodeFailed,
			KeyError.Field(err.Error()),
		)
		b.metrics.OnDecodeFailure(b.clock.Since(start))
		return fmt.Errorf("decode failed: %w", err)
	}

	var prev map[string]any
	if ptr := b.current.Load(); ptr != nil {
		prev = *ptr
	}
	changed := b.apply(prev, doc)

	b.current.Store(&doc)
	b.lastError.Store(nil)
	b.failures.reset()
	b.transitionState(ctx, oldState, StateHealthy)
	capitan.Emit(ctx, BindingApplySucceeded,
		KeyApplied.Field(changed),
	)
	b.metrics.OnApply(changed, b.clock.Since(start))

	return nil
}

// apply sets keys that are new or changed since prev and, when pruning,
// unsets keys that are gone. Keys are visited in sorted order so observers
// see a stable sequence. It returns the number of properties touched.
func (b *Binding) apply(prev, next map[string]any) int {
	changed := 0

	for _, key := range sortedKeys(next) {
		v := next[key]
		if old, had := prev[key]; had && reflect.DeepEqual(old, v) {
			continue
		}
		b.target.Set(key, v)
		changed++
	}

	if !b.prune {
		return changed
	}
	for _, key := range sortedKeys(prev) {
		if _, keep := next[key]; keep {
			continue
		}
		b.target.Unset(key)
		changed++
	}
	return changed
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// failureState returns StateEmpty until a document has been applied.
func (b *Binding) failureState() State {
	if b.current.Load() == nil {
		return StateEmpty
	}
	return StateDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (b *Binding) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	b.state.Store(int32(newState))
	capitan.Emit(ctx, BindingStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	b.metrics.OnStateChange(oldState, newState)
}

func (b *Binding) setError(err error) {
	e := err
	b.lastError.Store(&e)
}

// watch applies documents from changes until ctx ends or the source closes.
// Bursts are held by a debouncer and only the latest document is applied.
func (b *Binding) watch(ctx context.Context, changes <-chan []byte) {
	defer b.stopped(ctx)

	quiet := newDebouncer(b.clock, b.debounce)
	defer quiet.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-changes:
			if !ok {
				b.flush(ctx, quiet)
				return
			}
			b.received(ctx)
			quiet.hold(raw)
		case <-quiet.fired():
			b.flush(ctx, quiet)
		}
	}
}

// flush applies the held document, if any.
func (b *Binding) flush(ctx context.Context, quiet *debouncer) {
	if raw, ok := quiet.take(); ok {
		_ = b.process(ctx, raw) //nolint:errcheck // Errors stored via setError
	}
}

func (b *Binding) stopped(ctx context.Context) {
	final := b.State()
	capitan.Emit(ctx, BindingStopped,
		KeyState.Field(final.String()),
	)
	if b.onStop != nil {
		b.onStop(final)
	}
}
