package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/engine"
	"github.com/teletha/cointoss-sub007/internal/event"
	"github.com/teletha/cointoss-sub007/internal/execution"
	"github.com/teletha/cointoss-sub007/internal/storage"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// ScheduledOrder is an order requested once replay reaches At.
type ScheduledOrder struct {
	At        time.Time                `yaml:"at"`
	Side      domain.Side              `yaml:"side"`
	Size      decimal.Decimal          `yaml:"size"`
	Price     decimal.Decimal          `yaml:"price"`
	Condition domain.QuantityCondition `yaml:"condition"`
}

// LoadSchedule reads a YAML list of scheduled orders.
func LoadSchedule(path string) ([]ScheduledOrder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule: %w", err)
	}
	var out []ScheduledOrder
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse schedule: %w", err)
	}
	return out, nil
}

// Report summarizes a replay.
type Report struct {
	RunID         string             `json:"run_id"`
	Symbol        string             `json:"symbol"`
	VirtualTime   time.Time          `json:"virtual_time"`
	Stats         engine.Stats       `json:"stats"`
	Orders        []domain.Order     `json:"orders"`
	Fills         []domain.Execution `json:"fills"`
	Rejected      []string           `json:"rejected,omitempty"`
	Position      domain.Position    `json:"position"`
	LastPrice     decimal.Decimal    `json:"last_price"`
	UnrealizedPnL decimal.Decimal    `json:"unrealized_pnl"`
	Spread        decimal.Decimal    `json:"spread"`
}

// Replayer reads the event log and feeds it into an engine.
type Replayer struct {
	store    *storage.EventStore
	schedule []ScheduledOrder
}

// NewReplayer creates a new replayer instance.
func NewReplayer(store *storage.EventStore) *Replayer {
	return &Replayer{store: store}
}

// Schedule adds orders to request during the replay.
func (r *Replayer) Schedule(orders ...ScheduledOrder) {
	r.schedule = append(r.schedule, orders...)
	sort.SliceStable(r.schedule, func(i, j int) bool {
		return r.schedule[i].At.Before(r.schedule[j].At)
	})
}

// Run replays every event from the engine's next sequence number. Scheduled orders go
// through svc right before the first event stamped at or after their time; the ones
// left when the log ends are requested afterwards.
func (r *Replayer) Run(ctx context.Context, eng *engine.Engine, svc execution.Service) (*Report, error) {
	pending := r.schedule
	var rejected []string
	last := decimal.Zero

	request := func(due ScheduledOrder) {
		if eng.Now().Before(due.At) {
			eng.AdvanceTo(due.At)
		}
		o, err := domain.NewOrder(due.Side, due.Size).
			Price(due.Price).
			QuantityCondition(due.Condition).
			Build()
		if err == nil {
			o, err = svc.Request(ctx, o)
		}
		if err != nil {
			slog.Warn("SCHEDULED_ORDER_REJECTED", slog.Time("at", due.At), slog.Any("error", err))
			rejected = append(rejected, fmt.Sprintf("%s %s %s@%s: %v",
				due.At.Format(time.RFC3339), due.Side, due.Size, due.Price, err))
			return
		}
		slog.Debug("SCHEDULED_ORDER", slog.String("id", o.ID), slog.Time("at", due.At))
	}

	err := r.store.ScanEvents(ctx, eng.NextSeq(), func(ev event.Event) error {
		if ts := ev.GetTs(); ts > 0 {
			for len(pending) > 0 && pending[0].At.UnixMilli() <= ts {
				request(pending[0])
				pending = pending[1:]
			}
		}
		if x, ok := ev.(*event.ExecutionEvent); ok {
			last = x.Execution.Price
		}
		eng.ReplayEvent(ev)
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}
	for _, due := range pending {
		request(due)
	}
	eng.Flush()

	return r.report(ctx, eng, svc, last, rejected)
}

type filler interface {
	Fills() []domain.Execution
}

func (r *Replayer) report(ctx context.Context, eng *engine.Engine, svc execution.Service, last decimal.Decimal, rejected []string) (*Report, error) {
	orders, err := svc.Orders(ctx)
	if err != nil {
		return nil, err
	}

	var fills []domain.Execution
	if f, ok := svc.(filler); ok {
		fills = f.Fills()
	} else {
		mu := eng.Locker()
		mu.Lock()
		fills = eng.Simulator().Executions()
		mu.Unlock()
	}

	setting := svc.Setting()
	pos := domain.Position{Symbol: setting.Symbol}
	for _, f := range fills {
		pos.Apply(f.Side, f.Size, f.Price)
	}

	mu := eng.Locker()
	mu.Lock()
	spread := eng.Pair().Spread()
	mu.Unlock()

	rep := &Report{
		RunID:       eng.RunID(),
		Symbol:      setting.Symbol,
		VirtualTime: eng.Now(),
		Stats:       eng.Stats(),
		Orders:      orders,
		Fills:       fills,
		Rejected:    rejected,
		Position:    pos,
		LastPrice:   last,
		Spread:      spread,
	}
	if last.IsPositive() {
		rep.UnrealizedPnL = pos.UnrealizedPnL(last)
	}
	return rep, nil
}
