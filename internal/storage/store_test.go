package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

func openStore(t *testing.T) *EventStore {
	t.Helper()
	store, err := NewEventStore(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func execEvent(seq uint64, price int64) *event.ExecutionEvent {
	e := domain.NewExecution().ID(int64(seq)).Side(domain.Buy).
		Price(decimal.NewFromInt(price)).Size(decimal.RequireFromString("0.01")).
		Mills(1_700_000_000_000 + int64(seq)).Build()
	return &event.ExecutionEvent{
		BaseEvent: event.BaseEvent{Seq: seq, Ts: e.Mills},
		Symbol:    "BTC_JPY",
		Execution: e,
	}
}

func TestEventStore_SaveAndLoad(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	book := &event.BookDiffEvent{
		BaseEvent: event.BaseEvent{Seq: 2, Ts: 2000},
		Symbol:    "BTC_JPY",
		Diff:      domain.BookDiff{Bids: []domain.Level{{Price: 99, Size: 1}}},
	}
	for _, ev := range []event.Event{execEvent(1, 100), book, execEvent(3, 101)} {
		if err := store.SaveEvent(ctx, ev); err != nil {
			t.Fatalf("Failed to save %d: %v", ev.GetSeq(), err)
		}
	}

	loaded, err := store.LoadEvents(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to load events: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(loaded))
	}

	first, ok := loaded[0].(*event.ExecutionEvent)
	if !ok {
		t.Fatalf("Event 1 type = %T", loaded[0])
	}
	if first.Execution.Price.String() != "100" || first.Execution.Size.String() != "0.01" {
		t.Errorf("Event 1 execution mismatch: %v", first.Execution)
	}
	if diff, ok := loaded[1].(*event.BookDiffEvent); !ok || len(diff.Diff.Bids) != 1 {
		t.Errorf("Event 2 = %#v", loaded[1])
	}

	tail, err := store.LoadEvents(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 1 || tail[0].GetSeq() != 3 {
		t.Errorf("LoadEvents(3) = %v", tail)
	}

	if err := store.SaveEvent(ctx, execEvent(3, 102)); err == nil {
		t.Error("duplicate sequence must be rejected")
	}
}

func TestEventStore_SaveEvents(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	batch := []event.Event{execEvent(1, 100), execEvent(2, 100), execEvent(3, 100)}
	if err := store.SaveEvents(ctx, batch); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	// a failing batch leaves nothing behind
	bad := []event.Event{execEvent(4, 100), execEvent(2, 100)}
	if err := store.SaveEvents(ctx, bad); err == nil {
		t.Fatal("expected duplicate error")
	}
	last, err := store.GetLastSeq(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last != 3 {
		t.Errorf("GetLastSeq = %d, want 3", last)
	}

	var seen []uint64
	err = store.ScanEvents(ctx, 1, func(ev event.Event) error {
		seen = append(seen, ev.GetSeq())
		return nil
	})
	if err != nil || len(seen) != 3 {
		t.Errorf("ScanEvents = %v, %v", seen, err)
	}
}

func TestEventStore_GetLastSeq(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	lastSeq, err := store.GetLastSeq(ctx)
	if err != nil {
		t.Fatalf("GetLastSeq failed: %v", err)
	}
	if lastSeq != 0 {
		t.Errorf("Expected 0 for empty DB, got %d", lastSeq)
	}

	for _, seq := range []uint64{5, 10} {
		if err := store.SaveEvent(ctx, execEvent(seq, 100)); err != nil {
			t.Fatalf("Failed to save event: %v", err)
		}
	}

	lastSeq, err = store.GetLastSeq(ctx)
	if err != nil {
		t.Fatalf("GetLastSeq failed: %v", err)
	}
	if lastSeq != 10 {
		t.Errorf("Expected 10, got %d", lastSeq)
	}
}

func TestEventStore_Metadata(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	v, err := store.GetMetadata(ctx, "run_id")
	if err != nil || v != "" {
		t.Fatalf("GetMetadata(missing) = %q, %v", v, err)
	}
	if err := store.UpsertMetadata(ctx, "run_id", "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertMetadata(ctx, "run_id", "b", 2); err != nil {
		t.Fatal(err)
	}
	if v, _ := store.GetMetadata(ctx, "run_id"); v != "b" {
		t.Errorf("GetMetadata = %q, want b", v)
	}
}
