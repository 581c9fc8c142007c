// Package postgres provides a kvo.Source for a PostgreSQL properties table
// using LISTEN/NOTIFY. Each row of an object becomes one property.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zoobzio/clockz"
)

// DefaultRetryDelay is how long Watch waits before listening again after a
// connection error.
const DefaultRetryDelay = time.Second

// Source watches the rows belonging to one object in a properties table and
// emits them as a JSON object whenever a notification names that object.
// The table needs object, key and value (JSONB) columns and a trigger that
// notifies with the object id:
//
//	CREATE TABLE properties (
//	    object TEXT NOT NULL,
//	    key    TEXT NOT NULL,
//	    value  JSONB NOT NULL,
//	    PRIMARY KEY (object, key)
//	);
//
//	CREATE OR REPLACE FUNCTION notify_property_change() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('properties_changed', COALESCE(NEW.object, OLD.object));
//	    RETURN NULL;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER property_change_trigger
//	    AFTER INSERT OR UPDATE OR DELETE ON properties
//	    FOR EACH ROW EXECUTE FUNCTION notify_property_change();
type Source struct {
	pool    *pgxpool.Pool
	channel string
	object  string
	table   string
	retry   time.Duration
	clock   clockz.Clock
}

// Option configures a Source.
type Option func(*Source)

// WithTable sets the properties table name. Default: "properties".
func WithTable(table string) Option {
	return func(s *Source) {
		s.table = table
	}
}

// WithRetryDelay sets the wait after a connection error. Default: 1s.
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

// New creates a Source for object, listening on the given notification channel.
func New(pool *pgxpool.Pool, channel, object string, opts ...Option) *Source {
	s := &Source{
		pool:    pool,
		channel: channel,
		object:  object,
		table:   "properties",
		retry:   DefaultRetryDelay,
		clock:   clockz.RealClock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Watch implements kvo.Source. The current rows are emitted first.
func (s *Source) Watch(ctx context.Context) (<-chan []byte, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on channel %s: %w", s.channel, err)
	}

	out := make(chan []byte)

	go func() {
		defer close(out)
		defer conn.Release()

		if !s.emit(ctx, out) {
			return
		}

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil || !pause(ctx, s.clock, s.retry) {
					return
				}
				continue
			}
			if notification.Payload != s.object {
				continue
			}
			if !s.emit(ctx, out) {
				return
			}
		}
	}()

	return out, nil
}

// emit sends the current rows. It returns false once ctx is done.
func (s *Source) emit(ctx context.Context, out chan<- []byte) bool {
	doc, err := s.fetch(ctx)
	if err != nil {
		return ctx.Err() == nil
	}
	select {
	case out <- doc:
		return true
	case <-ctx.Done():
		return false
	}
}

// fetch aggregates the object's rows into a single JSON object.
func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf(
		"SELECT COALESCE(jsonb_object_agg(key, value), '{}'::jsonb)::text FROM %s WHERE object = $1",
		pgx.Identifier{s.table}.Sanitize(),
	)
	var doc string
	if err := s.pool.QueryRow(ctx, query, s.object).Scan(&doc); err != nil {
		return nil, err
	}
	return []byte(doc), nil
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
