package kvo

import (
	"context"
	"errors"
	"testing"
)

func TestFailureLog_NilSafe(t *testing.T) {
	var l *failureLog

	l.record(Failure{Err: errors.New("boom")})
	l.reset()

	if l.snapshot() != nil {
		t.Error("expected nil from nil log")
	}
	if newFailureLog(0) != nil || newFailureLog(-1) != nil {
		t.Error("expected nil log for non-positive size")
	}
}

func TestFailureLog_KeepsMostRecent(t *testing.T) {
	l := newFailureLog(3)
	for i := 1; i <= 5; i++ {
		l.record(Failure{Size: i})
	}

	got := l.snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(got))
	}
	for i, want := range []int{3, 4, 5} {
		if got[i].Size != want {
			t.Errorf("failure %d: expected size %d, got %d", i, want, got[i].Size)
		}
	}
}

func TestFailureLog_PartiallyFilled(t *testing.T) {
	l := newFailureLog(4)
	l.record(Failure{Size: 1})
	l.record(Failure{Size: 2})

	got := l.snapshot()
	if len(got) != 2 || got[0].Size != 1 || got[1].Size != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestFailureLog_Reset(t *testing.T) {
	l := newFailureLog(2)
	l.record(Failure{Size: 1})
	l.record(Failure{Size: 2})
	l.record(Failure{Size: 3})
	l.reset()

	if got := l.snapshot(); got != nil {
		t.Errorf("expected empty log after reset, got %+v", got)
	}
}

func TestBinding_FailureHistory(t *testing.T) {
	ctx := context.Background()
	ch := make(chan []byte, 4)

	b := Bind(NewObject(), NewSyncChannelSource(ch)).
		Codec(JSONCodec{}).
		FailureHistory(2).
		SyncMode()
	ch <- []byte(`{"a": 1}`)
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ch <- []byte(`x`)
	ch <- []byte(`[1]`)
	b.Process(ctx)
	b.Process(ctx)

	failures := b.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].Size != 1 || failures[1].Size != 3 {
		t.Errorf("unexpected failure sizes: %d, %d", failures[0].Size, failures[1].Size)
	}
	if !errors.Is(failures[1].Err, ErrNotObject) {
		t.Errorf("expected ErrNotObject, got %v", failures[1].Err)
	}

	ch <- []byte(`{"a": 2}`)
	b.Process(ctx)

	if got := b.Failures(); got != nil {
		t.Errorf("expected history cleared after a successful apply, got %+v", got)
	}
}

func TestBinding_FailuresDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	ch := make(chan []byte, 1)
	b := Bind(NewObject(), NewSyncChannelSource(ch)).SyncMode()
	ch <- []byte("a: [")

	_ = b.Start(ctx)

	if b.Failures() != nil {
		t.Error("expected no failure history unless enabled")
	}
}
