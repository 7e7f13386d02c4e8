package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/latency"
	"github.com/teletha/cointoss-sub007/internal/simulator"
	"github.com/teletha/cointoss-sub007/internal/storage"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func execEv(seq uint64, side domain.Side, size, price string, at time.Time) *event.ExecutionEvent {
	e := domain.NewExecution().ID(int64(seq)).Side(side).Size(dec(size)).Price(dec(price)).Date(at).Build()
	return &event.ExecutionEvent{BaseEvent: event.BaseEvent{Seq: seq, Ts: e.Mills}, Symbol: "BTC_JPY", Execution: e}
}

func bookEv(seq uint64, diff domain.BookDiff) *event.BookDiffEvent {
	return &event.BookDiffEvent{BaseEvent: event.BaseEvent{Seq: seq}, Symbol: "BTC_JPY", Diff: diff}
}

func openStore(t *testing.T) *storage.EventStore {
	t.Helper()
	store, err := storage.NewEventStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(domain.DefaultMarketSetting(), opts...)
	require.NoError(t, err)
	e.AdvanceTo(t0)
	return e
}

func TestReplayEmptyWAL(t *testing.T) {
	store := openStore(t)
	e := newEngine(t, WithStore(store))

	require.NoError(t, e.RecoverFromWAL(context.Background()))
	assert.Equal(t, uint64(1), e.NextSeq())

	id, err := store.GetMetadata(context.Background(), metaRunID)
	require.NoError(t, err)
	assert.Equal(t, e.RunID(), id)
}

func TestRecoverReproducesState(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	live := newEngine(t, WithStore(store))
	require.NoError(t, live.RecoverFromWAL(ctx))
	_, err := live.Simulator().Request(domain.NewOrder(domain.Buy, dec("2")).Price(dec("100")).MustBuild())
	require.NoError(t, err)

	live.Process(bookEv(1, domain.BookDiff{Full: true,
		Asks: []domain.Level{{Price: 101, Size: 1}},
		Bids: []domain.Level{{Price: 99, Size: 1}}}))
	live.Process(execEv(2, domain.Sell, "1", "100", t0.Add(time.Second)))
	live.Process(execEv(3, domain.Sell, "0.5", "99", t0.Add(2*time.Second)))

	replayed := newEngine(t, WithStore(store))
	_, err = replayed.Simulator().Request(domain.NewOrder(domain.Buy, dec("2")).Price(dec("100")).MustBuild())
	require.NoError(t, err)
	require.NoError(t, replayed.RecoverFromWAL(ctx))

	assert.Equal(t, live.NextSeq(), replayed.NextSeq())
	assert.Equal(t, live.RunID(), replayed.RunID())
	assert.Equal(t, live.Simulator().Orders(), replayed.Simulator().Orders())
	assert.Equal(t, live.Pair().Spread().String(), replayed.Pair().Spread().String())

	o := replayed.Simulator().Orders()[0]
	assert.Equal(t, "1.5", o.ExecutedSize.String())
}

func TestSequenceGapPolicy(t *testing.T) {
	e := newEngine(t, WithMaxSeqGap(5))

	e.Process(execEv(1, domain.Buy, "1", "100", t0))
	e.Process(execEv(1, domain.Buy, "1", "100", t0))
	assert.Equal(t, uint64(1), e.Stats().Duplicates)
	assert.Equal(t, uint64(1), e.Stats().Executions, "duplicates are not dispatched")

	e.Process(execEv(4, domain.Buy, "1", "100", t0))
	assert.Equal(t, uint64(5), e.NextSeq(), "small gaps fast-forward")

	assert.PanicsWithValue(t, "SEQUENCE_GAP_FATAL: expected 5, got 20", func() {
		e.Process(execEv(20, domain.Buy, "1", "100", t0))
	})
}

func TestReplayRejectsRewind(t *testing.T) {
	e := newEngine(t)
	e.ReplayEvent(execEv(3, domain.Buy, "1", "100", t0))
	assert.Equal(t, uint64(4), e.NextSeq())
	assert.Panics(t, func() { e.ReplayEvent(execEv(2, domain.Buy, "1", "100", t0)) })
}

func TestExecutionStream(t *testing.T) {
	var stream, takers []domain.Execution
	e := newEngine(t,
		WithExecutionHandler(func(x domain.Execution) { stream = append(stream, x) }),
		WithTakerHandler(func(x domain.Execution) { takers = append(takers, x) }))

	_, err := e.Simulator().Request(domain.NewOrder(domain.Buy, dec("1")).Price(dec("100")).MustBuild())
	require.NoError(t, err)

	e.Process(execEv(1, domain.Sell, "3", "100", t0))
	require.Len(t, stream, 2)
	assert.True(t, stream[0].IsSynthetic())
	assert.Equal(t, "1", stream[0].Size.String())
	assert.Equal(t, "2", stream[1].Size.String())
	assert.Equal(t, uint64(1), e.Stats().Synthetic)

	e.Process(execEv(2, domain.Buy, "1", "101", t0.Add(time.Second)))
	require.Len(t, takers, 1)
	assert.Equal(t, domain.Sell, takers[0].Side)
	assert.Equal(t, "3", takers[0].CumulativeSize.String())

	e.Flush()
	require.Len(t, takers, 2)
	assert.Equal(t, domain.Buy, takers[1].Side)
	assert.Equal(t, "1", takers[1].CumulativeSize.String())
}

func TestTakerFoldsMatchedPrint(t *testing.T) {
	type taker struct {
		side domain.Side
		cum  string
	}
	tests := []struct {
		name    string
		resting []domain.Order
		prints  []*event.ExecutionEvent
		want    []taker
	}{
		{
			name:    "fill and residual",
			resting: []domain.Order{domain.NewOrder(domain.Buy, dec("1")).Price(dec("100")).MustBuild()},
			prints: []*event.ExecutionEvent{
				execEv(1, domain.Sell, "3", "100", t0),
				execEv(2, domain.Buy, "1", "101", t0.Add(time.Second)),
			},
			want: []taker{{domain.Sell, "3"}, {domain.Buy, "1"}},
		},
		{
			name: "two fills and residual",
			resting: []domain.Order{
				domain.NewOrder(domain.Sell, dec("1")).Price(dec("100")).MustBuild(),
				domain.NewOrder(domain.Sell, dec("0.5")).Price(dec("100")).MustBuild(),
			},
			prints: []*event.ExecutionEvent{
				execEv(1, domain.Buy, "2", "100", t0),
				execEv(2, domain.Sell, "1", "99", t0.Add(time.Second)),
			},
			want: []taker{{domain.Buy, "2"}, {domain.Sell, "1"}},
		},
		{
			name:    "fully absorbed",
			resting: []domain.Order{domain.NewOrder(domain.Buy, dec("5")).Price(dec("100")).MustBuild()},
			prints: []*event.ExecutionEvent{
				execEv(1, domain.Sell, "2", "100", t0),
				execEv(2, domain.Sell, "1", "100", t0.Add(time.Second)),
			},
			want: []taker{{domain.Sell, "2"}, {domain.Sell, "1"}},
		},
		{
			name: "nothing resting",
			prints: []*event.ExecutionEvent{
				execEv(1, domain.Sell, "3", "100", t0),
				execEv(2, domain.Buy, "1", "101", t0.Add(time.Second)),
			},
			want: []taker{{domain.Sell, "3"}, {domain.Buy, "1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []taker
			e := newEngine(t, WithTakerHandler(func(x domain.Execution) {
				got = append(got, taker{x.Side, x.CumulativeSize.String()})
			}))
			for _, o := range tt.resting {
				_, err := e.Simulator().Request(o)
				require.NoError(t, err)
			}
			for _, p := range tt.prints {
				e.Process(p)
			}
			e.Flush()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBookDiffAndTrim(t *testing.T) {
	e := newEngine(t, WithGroupWidth(dec("10")))
	e.Process(bookEv(1, domain.BookDiff{Full: true,
		Asks: []domain.Level{{Price: 101, Size: 1}, {Price: 102, Size: 1}, {Price: 115, Size: 2}},
		Bids: []domain.Level{{Price: 99, Size: 1}}}))
	assert.Equal(t, "2", e.Pair().Spread().String())
	assert.Equal(t, []domain.Level{{Price: 100, Size: 2}, {Price: 110, Size: 2}}, e.Pair().Asks.GroupedLevels())

	// a print at 102 proves the 101 ask is gone
	e.Process(execEv(2, domain.Buy, "1", "102", t0))
	assert.Equal(t, []domain.Level{{Price: 102, Size: 1}, {Price: 115, Size: 2}}, e.Pair().Asks.Levels())
}

func TestOutOfOrderIsLogged(t *testing.T) {
	e := newEngine(t)
	e.Process(execEv(1, domain.Buy, "1", "100", t0.Add(time.Second)))
	e.Process(execEv(2, domain.Buy, "1", "100", t0))
	assert.Equal(t, uint64(1), e.Stats().OutOfOrder)
	assert.Equal(t, uint64(2), e.Stats().Executions)
}

func TestRunLoop(t *testing.T) {
	e := newEngine(t, WithInboxSize(4))
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(context.Background())
	}()

	e.Inbox() <- execEv(1, domain.Buy, "1", "100", t0)
	e.Inbox() <- execEv(2, domain.Sell, "1", "100", t0)
	e.Inbox() <- &event.SystemHaltEvent{BaseEvent: event.BaseEvent{Seq: 3}, Reason: "test"}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on halt")
	}
	assert.Equal(t, uint64(2), e.Stats().Executions)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Run(ctx)
}

func TestLatencyThroughEngine(t *testing.T) {
	e := newEngine(t, WithSimulatorOptions(simulator.WithLatency(latency.MustFixed(3*time.Second))))
	o, err := e.Simulator().Request(domain.NewOrder(domain.Buy, dec("1")).Price(dec("100")).MustBuild())
	require.NoError(t, err)

	e.Process(execEv(1, domain.Sell, "1", "100", t0.Add(2*time.Second)))
	got, _ := e.Simulator().Order(o.ID)
	assert.Equal(t, domain.Active, got.State)

	e.Elapse(500 * time.Millisecond)
	assert.True(t, e.Now().Equal(t0.Add(2500*time.Millisecond)))

	e.Process(execEv(2, domain.Sell, "1", "100", t0.Add(3*time.Second)))
	got, _ = e.Simulator().Order(o.ID)
	assert.Equal(t, domain.Completed, got.State)
}

func TestSnapshotsAndDump(t *testing.T) {
	dir := t.TempDir()
	sm := storage.NewSnapshotManager(filepath.Join(dir, "snap"))
	e := newEngine(t, WithSnapshots(sm, 2, 1))

	for seq := uint64(1); seq <= 4; seq++ {
		e.Process(execEv(seq, domain.Buy, "1", "100", t0))
	}
	snap, err := sm.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, uint64(4), snap.Seq)
	assert.Equal(t, e.RunID(), snap.RunID)

	entries, err := os.ReadDir(filepath.Join(dir, "snap"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	dump := filepath.Join(dir, "dump.json")
	e.DumpState(dump)
	b, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"next_seq": 5`)
}
