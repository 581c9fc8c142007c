// Package redis provides a kvo.Source for a Redis hash using keyspace
// notifications. Each hash field becomes one property.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Source watches a Redis hash and emits it as a JSON object whenever it
// changes. A deleted or expired hash is emitted as {}.
// Requires Redis to have keyspace notifications enabled:
//
//	CONFIG SET notify-keyspace-events KEA
//
// Or in redis.conf:
//
//	notify-keyspace-events KEA
type Source struct {
	client *redis.Client
	key    string
	db     int
}

// Option configures a Source.
type Option func(*Source)

// WithDB sets the database number used in the keyspace channel name.
// It must match the database the client is connected to. Default: 0.
func WithDB(db int) Option {
	return func(s *Source) {
		s.db = db
	}
}

// New creates a Source for the hash at key.
func New(client *redis.Client, key string, opts ...Option) *Source {
	s := &Source{
		client: client,
		key:    key,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch implements kvo.Source. The current hash is emitted first.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	channel := fmt.Sprintf("__keyspace@%d__:%s", s.db, s.key)
	pubsub := s.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to keyspace notifications: %w", err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer pubsub.Close()

		if !s.emit(ctx, out) {
			return
		}

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if !mutatesHash(msg.Payload) {
					continue
				}
				if !s.emit(ctx, out) {
					return
				}
			}
		}
	}()

	return out, nil
}

// mutatesHash reports whether a keyspace event changes the hash contents.
func mutatesHash(event string) bool {
	switch event {
	case "hset", "hdel", "hincrby", "hincrbyfloat", "del", "expired", "evicted", "rename_to":
		return true
	default:
		return false
	}
}

// emit reads the hash and sends it as JSON. It returns false when the
// goroutine should stop.
func (s *Source) emit(ctx context.Context, out chan<- []byte) bool {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		// Transient read failure; wait for the next notification.
		return ctx.Err() == nil
	}
	data, err := json.Marshal(fields)
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
