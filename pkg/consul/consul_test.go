package consul

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/testcontainers/testcontainers-go"
	tcconsul "github.com/testcontainers/testcontainers-go/modules/consul"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/kvo"
)

func setupConsul(t *testing.T) *api.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcconsul.Run(ctx, "consul:1.15")
	if err != nil {
		t.Fatalf("failed to start consul container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ApiEndpoint(ctx)
	if err != nil {
		t.Fatalf("failed to get endpoint: %v", err)
	}

	client, err := api.NewClient(&api.Config{
		Address: endpoint,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

func put(t *testing.T, client *api.Client, key, value string) {
	t.Helper()
	if _, err := client.KV().Put(&api.KVPair{Key: key, Value: []byte(value)}, nil); err != nil {
		t.Fatalf("failed to put %s: %v", key, err)
	}
}

func receive(t *testing.T, ch <-chan []byte) map[string]string {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		var doc map[string]string
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("document is not JSON: %v (%s)", err, data)
		}
		return doc
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for document")
		return nil
	}
}

func TestNew_NormalizesPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"flags", "flags/"},
		{"flags/", "flags/"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := New(nil, tt.prefix).prefix; got != tt.want {
			t.Errorf("New(%q).prefix = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestDocument_StripsPrefix(t *testing.T) {
	s := New(nil, "flags")
	doc := s.document(api.KVPairs{
		{Key: "flags/", Value: nil},
		{Key: "flags/new_ui", Value: []byte("true")},
		{Key: "flags/cart/limit", Value: []byte("50")},
		{Key: "flags/cart/", Value: nil},
	})

	if len(doc) != 2 {
		t.Fatalf("expected 2 properties, got %v", doc)
	}
	if doc["new_ui"] != "true" || doc["cart/limit"] != "50" {
		t.Errorf("unexpected document %v", doc)
	}
}

func TestSource_EmitsInitialKeys(t *testing.T) {
	client := setupConsul(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	put(t, client, "flags/new_ui", "true")
	put(t, client, "flagship/other", "x")

	ch, err := New(client, "flags").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	doc := receive(t, ch)
	if len(doc) != 1 || doc["new_ui"] != "true" {
		t.Errorf("unexpected initial document %v", doc)
	}
}

func TestSource_EmitsOnChangeAndDelete(t *testing.T) {
	client := setupConsul(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	put(t, client, "flags/mode", "fast")

	ch, err := New(client, "flags").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	receive(t, ch)

	put(t, client, "flags/mode", "slow")
	if doc := receive(t, ch); doc["mode"] != "slow" {
		t.Errorf("expected mode slow, got %v", doc)
	}

	if _, err := client.KV().Delete("flags/mode", nil); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if doc := receive(t, ch); len(doc) != 0 {
		t.Errorf("expected empty document after delete, got %v", doc)
	}
}

func TestSource_ClosesOnContextCancel(t *testing.T) {
	client := setupConsul(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := New(client, "flags").Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	receive(t, ch)

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for channel close")
	}
}

func TestSource_BindsObject(t *testing.T) {
	client := setupConsul(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	put(t, client, "flags/mode", "fast")

	obj := kvo.NewObject()
	b := kvo.Bind(obj, New(client, "flags")).
		Codec(kvo.JSONCodec{}).
		Debounce(10 * time.Millisecond)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mode := kvo.NewProperty[string](obj, "mode")
	if v, ok := mode.Get(); !ok || v != "fast" {
		t.Fatalf("expected mode fast, got %q (%v)", v, ok)
	}

	put(t, client, "flags/mode", "slow")

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := mode.Get(); v == "slow" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timeout waiting for mode update")
}

func TestPause_WaitsForClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	done := make(chan bool, 1)

	go func() {
		done <- pause(context.Background(), clock, time.Second)
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ok := <-done:
			if !ok {
				t.Error("expected pause to complete")
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for pause")
		default:
			clock.Advance(time.Second)
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestPause_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if pause(ctx, clockz.NewFakeClock(), time.Hour) {
		t.Error("expected pause to report cancellation")
	}
}

func TestWithRetryDelay(t *testing.T) {
	s := New(nil, "flags")
	if s.retry != DefaultRetryDelay {
		t.Errorf("expected default retry %v, got %v", DefaultRetryDelay, s.retry)
	}
	if s = New(nil, "flags", WithRetryDelay(50*time.Millisecond)); s.retry != 50*time.Millisecond {
		t.Errorf("expected retry 50ms, got %v", s.retry)
	}
}
