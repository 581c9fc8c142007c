package kvo

import "context"

// Source produces documents describing the desired properties of an Object.
// The file and redis packages provide implementations.
type Source interface {
	// Watch begins observing the source and returns a channel of raw
	// documents. The current document must be emitted first so a Binding
	// can apply its initial state. The channel is closed when ctx is
	// canceled or the source fails permanently.
	Watch(ctx context.Context) (<-chan []byte, error)
}

// ChannelSource adapts an existing byte channel to Source.
// Useful for tests and for sources that already push documents.
type ChannelSource struct {
	ch     <-chan []byte
	direct bool
}

// NewChannelSource returns a Source that relays ch through a goroutine
// which stops when the Watch context ends.
func NewChannelSource(ch <-chan []byte) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// NewSyncChannelSource returns a Source that hands ch out unchanged.
// Pair it with Binding.SyncMode for deterministic tests.
func NewSyncChannelSource(ch <-chan []byte) *ChannelSource {
	return &ChannelSource{ch: ch, direct: true}
}

// Watch implements Source.
func (s *ChannelSource) Watch(ctx context.Context) (<-chan []byte, error) {
	if s.direct {
		return s.ch, nil
	}

	out := make(chan []byte)
	go relay(ctx, s.ch, out)
	return out, nil
}

// relay copies documents from in to out until in closes or ctx ends.
func relay(ctx context.Context, in <-chan []byte, out chan<- []byte) {
	defer close(out)
	for {
		var doc []byte
		select {
		case <-ctx.Done():
			return
		case d, ok := <-in:
			if !ok {
				return
			}
			doc = d
		}

		select {
		case out <- doc:
		case <-ctx.Done():
			return
		}
	}
}
