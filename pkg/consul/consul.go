// Package consul provides a kvo.Source for a Consul KV prefix using
// blocking queries. Each key under the prefix becomes one property.
package consul

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/zoobzio/clockz"
)

// DefaultRetryDelay is how long Watch waits before querying again after an
// agent error.
const DefaultRetryDelay = time.Second

// Source watches every key under a Consul KV prefix and emits them as a JSON
// object of property name to string value. Property names are the key with
// the prefix removed; nested folders keep their slashes.
type Source struct {
	client *api.Client
	prefix string
	retry  time.Duration
	clock  clockz.Clock
}

// Option configures a Source.
type Option func(*Source)

// WithRetryDelay sets the wait after a failed query. Default: 1s.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Source) {
		s.retry = d
	}
}

// WithClock sets the clock used for retry waits.
func WithClock(clock clockz.Clock) Option {
	return func(s *Source) {
		s.clock = clock
	}
}

// New creates a Source for the keys under prefix. A trailing slash is added
// when missing so "flags" does not also match "flagship/".
func New(client *api.Client, prefix string, opts ...Option) *Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s := &Source{
		client: client,
		prefix: prefix,
		retry:  DefaultRetryDelay,
		clock:  clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch implements kvo.Source. The current keys are emitted first.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	kv := s.client.KV()

	pairs, meta, err := kv.List(s.prefix, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.prefix, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)

		lastIndex := meta.LastIndex
		if !s.emit(ctx, out, pairs) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			opts := (&api.QueryOptions{WaitIndex: lastIndex}).WithContext(ctx)
			pairs, meta, err := kv.List(s.prefix, opts)
			if err != nil {
				if ctx.Err() != nil || !pause(ctx, s.clock, s.retry) {
					return
				}
				continue
			}

			// Blocking queries also return on timeout with the same index.
			if meta.LastIndex <= lastIndex {
				// An index going backwards means the store was reset.
				if meta.LastIndex < lastIndex {
					lastIndex = 0
				}
				continue
			}
			lastIndex = meta.LastIndex

			if !s.emit(ctx, out, pairs) {
				return
			}
		}
	}()

	return out, nil
}

// emit encodes pairs as a document and sends it. It returns false once ctx
// is done.
func (s *Source) emit(ctx context.Context, out chan<- []byte, pairs api.KVPairs) bool {
	data, err := json.Marshal(s.document(pairs))
	if err != nil {
		return true
	}
	select {
	case out <- data:
		return true
	case <-ctx.Done():
		return false
	}
}

// document maps pairs to property names. Folder placeholders are skipped.
func (s *Source) document(pairs api.KVPairs) map[string]string {
	doc := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name := strings.TrimPrefix(p.Key, s.prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		doc[name] = string(p.Value)
	}
	return doc
}

// pause waits for d or until ctx ends. It reports whether the wait completed.
func pause(ctx context.Context, clock clockz.Clock, d time.Duration) bool {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C():
		return true
	case <-ctx.Done():
		return false
	}
}
