// Package engine serializes feed events into the matching simulator and the order book.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/orderbook"
	"github.com/teletha/cointoss-sub007/internal/sequence"
	"github.com/teletha/cointoss-sub007/internal/simulator"
	"github.com/teletha/cointoss-sub007/internal/storage"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

const (
	DefaultInboxSize = 1024
	DefaultMaxSeqGap = 1000

	metaRunID = "run_id"
)

// Stats counts what the engine has processed.
type Stats struct {
	Events      uint64 `json:"events"`
	Executions  uint64 `json:"executions"`
	Synthetic   uint64 `json:"synthetic"`
	BookDiffs   uint64 `json:"book_diffs"`
	Takers      uint64 `json:"takers"`
	Duplicates  uint64 `json:"duplicates"`
	OutOfOrder  uint64 `json:"out_of_order"`
	OrderEvents uint64 `json:"order_events"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore enables write-ahead logging of every live event.
func WithStore(store *storage.EventStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithSnapshots saves a snapshot every n events and keeps the newest keep files.
func WithSnapshots(sm *storage.SnapshotManager, every uint64, keep int) Option {
	return func(e *Engine) {
		e.snapshots = sm
		e.snapshotEvery = every
		e.snapshotKeep = keep
	}
}

// WithMaxSeqGap sets how many missing sequence numbers are tolerated before halting.
func WithMaxSeqGap(n uint64) Option {
	return func(e *Engine) { e.maxGap = n }
}

// WithInboxSize sets the inbox buffer.
func WithInboxSize(n int) Option {
	return func(e *Engine) { e.inboxSize = n }
}

// WithSimulatorOptions passes options through to the simulator.
func WithSimulatorOptions(opts ...simulator.Option) Option {
	return func(e *Engine) { e.simOpts = append(e.simOpts, opts...) }
}

// WithGroupWidth groups both ladders by width. Zero keeps native granularity.
func WithGroupWidth(width decimal.Decimal) Option {
	return func(e *Engine) { e.groupWidth = width }
}

// WithExecutionHandler receives the execution stream after matching: synthetic fills
// followed by any unconsumed remainder. It runs under the engine lock.
func WithExecutionHandler(fn func(domain.Execution)) Option {
	return func(e *Engine) { e.onExecution = fn }
}

// WithTakerHandler receives completed takers with their cumulative size.
func WithTakerHandler(fn func(domain.Execution)) Option {
	return func(e *Engine) { e.onTaker = fn }
}

// Engine is the single-threaded event processor of a backtest or paper session.
type Engine struct {
	mu sync.Mutex

	inbox     chan event.Event
	inboxSize int
	nextSeq   uint64
	maxGap    uint64
	lastTs    int64
	runID     string

	setting    domain.MarketSetting
	sim        *simulator.Simulator
	simOpts    []simulator.Option
	pair       *orderbook.Pair
	groupWidth decimal.Decimal
	timeline   sequence.TakerTimeline

	store         *storage.EventStore
	snapshots     *storage.SnapshotManager
	snapshotEvery uint64
	snapshotKeep  int

	onExecution func(domain.Execution)
	onTaker     func(domain.Execution)

	stats Stats
}

// New builds an engine for one market.
func New(setting domain.MarketSetting, opts ...Option) (*Engine, error) {
	pair, err := orderbook.NewPair(setting)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		inboxSize: DefaultInboxSize,
		nextSeq:   1,
		maxGap:    DefaultMaxSeqGap,
		runID:     uuid.NewString(),
		setting:   setting,
		pair:      pair,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.groupWidth.IsPositive() {
		if err := pair.GroupBy(e.groupWidth); err != nil {
			return nil, fmt.Errorf("group width: %w", err)
		}
	}
	e.inbox = make(chan event.Event, e.inboxSize)
	e.sim = simulator.New(setting, e.simOpts...)
	return e, nil
}

// Locker is the lock guarding the simulator and the book. Execution services share it.
// Callbacks registered on the engine run while it is held and must not take it again.
func (e *Engine) Locker() sync.Locker { return &e.mu }

func (e *Engine) Simulator() *simulator.Simulator { return e.sim }
func (e *Engine) Pair() *orderbook.Pair           { return e.pair }
func (e *Engine) Setting() domain.MarketSetting   { return e.setting }
func (e *Engine) RunID() string                   { return e.runID }

// NextSeq returns the sequence number the engine expects next.
func (e *Engine) NextSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextSeq
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Now returns the virtual time.
func (e *Engine) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.Now()
}

// Elapse advances virtual time by d and runs due tasks.
func (e *Engine) Elapse(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim.Elapse(d)
}

// AdvanceTo moves virtual time to t and runs due tasks.
func (e *Engine) AdvanceTo(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim.AdvanceTo(t)
}

// RecoverFromWAL rebuilds state by replaying the stored log through the same path
// live events take.
func (e *Engine) RecoverFromWAL(ctx context.Context) error {
	if e.store == nil {
		slog.Info("No store configured, starting fresh")
		return nil
	}

	runID, err := e.store.GetMetadata(ctx, metaRunID)
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	if runID == "" {
		if err := e.store.UpsertMetadata(ctx, metaRunID, e.runID, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("failed to write run id: %w", err)
		}
	} else {
		e.runID = runID
	}

	lastSeq, err := e.store.GetLastSeq(ctx)
	if err != nil {
		return fmt.Errorf("failed to get last seq: %w", err)
	}
	if lastSeq == 0 {
		slog.Info("WAL is empty, starting fresh", slog.String("run_id", e.runID))
		return nil
	}

	slog.Info("Replaying events from WAL", slog.Uint64("last_seq", lastSeq))
	err = e.store.ScanEvents(ctx, 1, func(ev event.Event) error {
		e.ReplayEvent(ev)
		return ctx.Err()
	})
	if err != nil {
		return fmt.Errorf("failed to replay WAL: %w", err)
	}

	slog.Info("State recovered from WAL",
		slog.Uint64("next_seq", e.NextSeq()),
		slog.String("run_id", e.runID))
	return nil
}

// validateSequence applies the gap policy. It reports false for events that must be
// skipped.
func (e *Engine) validateSequence(seq uint64) bool {
	expected := e.nextSeq
	if seq == expected {
		return true
	}

	if seq < expected {
		e.stats.Duplicates++
		slog.Warn("SEQUENCE_DUPLICATE_IGNORED", slog.Uint64("expected", expected), slog.Uint64("got", seq))
		return false
	}

	gap := seq - expected
	if gap > e.maxGap {
		panic(fmt.Sprintf("SEQUENCE_GAP_FATAL: expected %d, got %d", expected, seq))
	}
	slog.Warn("SEQUENCE_GAP_TOLERATED",
		slog.Uint64("expected", expected),
		slog.Uint64("got", seq),
		slog.Uint64("gap", gap))
	e.nextSeq = seq
	return true
}

// Inbox returns the event channel. Feed workers send events here.
func (e *Engine) Inbox() chan<- event.Event {
	return e.inbox
}

// Run consumes the inbox until ctx is done or a halt event arrives. It must run in a
// single goroutine. Execution events go back to the event pool once processed.
// A panic dumps state to panic_dump.json and halts the process.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine started", slog.String("run_id", e.runID))

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping...")
			return
		case ev := <-e.inbox:
			if _, halt := ev.(*event.SystemHaltEvent); halt {
				slog.Warn("SYSTEM_HALT", slog.Uint64("seq", ev.GetSeq()))
				return
			}
			e.Process(ev)
			if x, ok := ev.(*event.ExecutionEvent); ok {
				event.ReleaseExecutionEvent(x)
			}
		}
	}
}

// Process handles one live event: gap check, write-ahead log, dispatch.
func (e *Engine) Process(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.validateSequence(ev.GetSeq()) {
		return
	}

	if e.store != nil {
		if err := e.store.SaveEvent(context.Background(), ev); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	e.dispatch(ev)
	e.nextSeq++
	e.maybeSnapshot(ev.GetSeq())
}

// ReplayEvent processes a stored event without logging it again. Forward jumps are the
// gaps the live run tolerated; going backwards is fatal.
func (e *Engine) ReplayEvent(ev event.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ev.GetSeq() < e.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", e.nextSeq, ev.GetSeq()))
	}
	e.nextSeq = ev.GetSeq()

	e.dispatch(ev)
	e.nextSeq++
}

func (e *Engine) dispatch(ev event.Event) {
	e.stats.Events++
	switch x := ev.(type) {
	case *event.ExecutionEvent:
		e.handleExecution(x.Execution)
	case *event.BookDiffEvent:
		e.stats.BookDiffs++
		e.pair.Apply(x.Diff)
	case *event.OrderUpdateEvent:
		// derived state; the simulator reproduces it
		e.stats.OrderEvents++
	case *event.SystemHaltEvent:
		slog.Warn("SYSTEM_HALT", slog.String("reason", x.Reason))
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

func (e *Engine) handleExecution(x domain.Execution) {
	e.stats.Executions++
	if x.Mills < e.lastTs {
		e.stats.OutOfOrder++
		slog.Warn("EXECUTION_OUT_OF_ORDER",
			slog.Int64("id", x.ID),
			slog.Int64("mills", x.Mills),
			slog.Int64("last", e.lastTs))
	} else {
		e.lastTs = x.Mills
	}

	out := e.sim.Emulate(x)
	e.pair.Trim(x.Price)

	for _, o := range out {
		if o.IsSynthetic() {
			e.stats.Synthetic++
		}
		if e.onExecution != nil {
			e.onExecution(o)
		}
		if taker, ok := e.timeline.Observe(o); ok {
			e.emitTaker(taker)
		}
	}
}

func (e *Engine) emitTaker(t domain.Execution) {
	e.stats.Takers++
	if e.onTaker != nil {
		e.onTaker(t)
	}
}

// Flush emits the taker still being aggregated.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if taker, ok := e.timeline.Flush(); ok {
		e.emitTaker(taker)
	}
}

func (e *Engine) maybeSnapshot(seq uint64) {
	if e.snapshots == nil || e.snapshotEvery == 0 || seq%e.snapshotEvery != 0 {
		return
	}
	if _, err := e.snapshots.Save(e.snapshot()); err != nil {
		slog.Error("SNAPSHOT_FAILED", slog.Any("error", err))
		return
	}
	if e.snapshotKeep > 0 {
		if err := e.snapshots.Cleanup(e.snapshotKeep); err != nil {
			slog.Warn("SNAPSHOT_CLEANUP_FAILED", slog.Any("error", err))
		}
	}
}

// Snapshot captures the book, the orders and the clock.
func (e *Engine) Snapshot() *storage.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() *storage.Snapshot {
	return storage.CreateSnapshot(e.nextSeq-1, e.sim.Now(), e.runID,
		e.pair.Asks.Levels(), e.pair.Bids.Levels(), e.sim.Orders())
}

// DumpState writes the entire internal state to a file for post-mortem. It is called
// while a panic unwinds, so it does not take the lock.
func (e *Engine) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq uint64            `json:"next_seq"`
		Stats   Stats             `json:"stats"`
		State   *storage.Snapshot `json:"state"`
	}{
		NextSeq: e.nextSeq,
		Stats:   e.stats,
		State:   e.snapshot(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
