// Package simulator matches simulated orders against a recorded execution stream.
//
// Orders rest in a single priority list: takers ahead of makers, each group in arrival
// order. Every incoming execution advances the virtual clock to its timestamp and is
// offered to the resting orders in list order. Acceptance and cancellation are delayed
// by the configured latency, measured on the virtual clock.
package simulator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teletha/cointoss-sub007/internal/clock"
	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/latency"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

const acceptancePrefix = "LOCAL-ACCEPTANCE-"

var (
	ErrOrderNotFound      = errors.New("simulator: order not found")
	ErrTakerNotCancelable = errors.New("simulator: taker orders cannot be canceled")
	ErrOrderTerminated    = errors.New("simulator: order already terminated")
)

// Listener observes order state changes and fills. For every fill OnOrderUpdate is
// called before OnFill.
type Listener interface {
	OnOrderUpdate(order domain.Order)
	OnFill(orderID string, fill domain.Execution)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OrderUpdate func(domain.Order)
	Fill        func(string, domain.Execution)
}

func (f ListenerFuncs) OnOrderUpdate(o domain.Order) {
	if f.OrderUpdate != nil {
		f.OrderUpdate(o)
	}
}

func (f ListenerFuncs) OnFill(id string, e domain.Execution) {
	if f.Fill != nil {
		f.Fill(id, e)
	}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLatency sets the acceptance and cancellation latency. The default is zero.
func WithLatency(l latency.Latency) Option {
	return func(s *Simulator) { s.latency = l }
}

// WithClock shares an existing clock instead of one starting at the unix epoch.
func WithClock(c *clock.Clock) Option {
	return func(s *Simulator) { s.clock = c }
}

// WithListener registers a listener. It may be given more than once.
func WithListener(l Listener) Option {
	return func(s *Simulator) { s.listeners = append(s.listeners, l) }
}

// WithExclusiveExecution lets one execution fill at most one order; whatever the first
// matching order leaves of it is discarded.
func WithExclusiveExecution(exclusive bool) Option {
	return func(s *Simulator) { s.exclusive = exclusive }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// Simulator is the matching engine of a backtest. It is not safe for concurrent use.
type Simulator struct {
	setting   domain.MarketSetting
	clock     *clock.Clock
	latency   latency.Latency
	listeners []Listener
	exclusive bool
	logger    *slog.Logger

	nextID   int
	resident []*ResidentOrder
	orders   []*ResidentOrder
	byID     map[string]*ResidentOrder
	fills    []domain.Execution

	stagedBeforeResponse []domain.Execution
	stagedAfterCancel    []domain.Execution
}

// New returns an empty simulator for one market.
func New(setting domain.MarketSetting, opts ...Option) *Simulator {
	s := &Simulator{
		setting: setting,
		latency: latency.Zero(),
		logger:  slog.Default(),
		byID:    make(map[string]*ResidentOrder),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.New(time.UnixMilli(0))
	}
	return s
}

// Setting returns the market the simulator was built for.
func (s *Simulator) Setting() domain.MarketSetting { return s.setting }

// Clock exposes the virtual clock so callers can schedule deferred work on it.
func (s *Simulator) Clock() *clock.Clock { return s.clock }

// Now returns the current virtual time.
func (s *Simulator) Now() time.Time { return s.clock.Now() }

// Elapse advances virtual time by d and runs due tasks.
func (s *Simulator) Elapse(d time.Duration) { s.clock.Elapse(d) }

// AdvanceTo moves virtual time to t and runs due tasks.
func (s *Simulator) AdvanceTo(t time.Time) { s.clock.AdvanceTo(t) }

// StageBeforeResponse queues e to be matched right after the next order is accepted,
// before Request returns.
func (s *Simulator) StageBeforeResponse(e domain.Execution) {
	s.stagedBeforeResponse = append(s.stagedBeforeResponse, e)
}

// StageAfterCancel queues e to be matched before the next synchronous cancel lands.
func (s *Simulator) StageAfterCancel(e domain.Execution) {
	s.stagedAfterCancel = append(s.stagedAfterCancel, e)
}

// Request accepts an order. The order becomes eligible for matching once the virtual
// clock reaches now plus the current latency.
func (s *Simulator) Request(o domain.Order) (domain.Order, error) {
	if !o.Size.IsPositive() {
		return domain.Order{}, domain.ErrInvalidOrderSize
	}
	typ := domain.Maker
	if !o.Price.IsPositive() {
		typ = domain.Taker
	}

	r := &ResidentOrder{
		ID:              fmt.Sprintf("%s%d", acceptancePrefix, s.nextID),
		Side:            o.Side,
		Type:            typ,
		Condition:       o.QuantityCondition,
		Size:            o.Size,
		Remaining:       o.Size,
		Executed:        decimal.Zero,
		Price:           o.Price,
		State:           domain.Active,
		AcceptanceMills: s.clock.NowMills() + s.latency.Lag().Milliseconds(),
	}
	if typ == domain.Taker {
		r.Price = decimal.Zero
	}
	s.nextID++
	s.insert(r)
	s.orders = append(s.orders, r)
	s.byID[r.ID] = r

	s.logger.Debug("ORDER_ACCEPTED",
		slog.String("id", r.ID),
		slog.String("side", r.Side.String()),
		slog.String("type", r.Type.String()),
		slog.String("price", r.Price.String()),
		slog.String("size", r.Size.String()),
		slog.Int64("acceptance", r.AcceptanceMills))

	if len(s.stagedBeforeResponse) > 0 {
		staged := s.stagedBeforeResponse
		s.stagedBeforeResponse = nil
		for _, e := range staged {
			s.Emulate(e)
		}
	}
	return r.Snapshot(), nil
}

// insert places takers ahead of the first maker and makers at the tail.
func (s *Simulator) insert(r *ResidentOrder) {
	if r.Type == domain.Maker {
		s.resident = append(s.resident, r)
		return
	}
	i := 0
	for i < len(s.resident) && s.resident[i].Type == domain.Taker {
		i++
	}
	s.resident = append(s.resident, nil)
	copy(s.resident[i+1:], s.resident[i:])
	s.resident[i] = r
}

// Cancel requests cancellation. The returned channel receives the canceled snapshot once
// the cancel lands: immediately under zero latency, otherwise when an execution reaches
// the deadline. The channel is closed afterwards. If the order fills completely first,
// the channel is closed without a value.
func (s *Simulator) Cancel(id string) (<-chan domain.Order, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if r.Type == domain.Taker {
		return nil, fmt.Errorf("%w: %s", ErrTakerNotCancelable, id)
	}
	if r.State.IsTerminated() {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderTerminated, id, r.State)
	}
	if r.canceled == nil {
		r.canceled = make(chan domain.Order, 1)
	}
	ch := r.canceled

	now := s.clock.Now()
	landing := s.latency.Emulate(now)
	if landing.Equal(now) {
		if len(s.stagedAfterCancel) > 0 {
			staged := s.stagedAfterCancel
			s.stagedAfterCancel = nil
			for _, e := range staged {
				s.Emulate(e)
			}
		}
		if !r.State.IsTerminated() {
			s.cancel(r, s.clock.NowMills())
		}
		return ch, nil
	}

	r.CancelDeadline = landing.UnixMilli()
	s.logger.Debug("ORDER_CANCEL_PENDING", slog.String("id", r.ID), slog.Int64("deadline", r.CancelDeadline))
	return ch, nil
}

// cancel terminates r and removes it from the resident list.
func (s *Simulator) cancel(r *ResidentOrder, mills int64) {
	s.terminate(r, domain.Canceled, mills)
	s.remove(r)
}

func (s *Simulator) terminate(r *ResidentOrder, state domain.OrderState, mills int64) {
	r.State = state
	r.TerminatedMills = mills
	snap := r.Snapshot()
	if r.canceled != nil {
		if state == domain.Canceled {
			r.canceled <- snap
		}
		close(r.canceled)
		r.canceled = nil
	}
	s.logger.Debug("ORDER_"+state.String(), slog.String("id", r.ID), slog.String("executed", r.Executed.String()))
	if state == domain.Canceled {
		s.notify(snap)
	}
}

func (s *Simulator) remove(r *ResidentOrder) {
	for i, o := range s.resident {
		if o == r {
			s.resident = append(s.resident[:i], s.resident[i+1:]...)
			return
		}
	}
}

func (s *Simulator) notify(o domain.Order) {
	for _, l := range s.listeners {
		l.OnOrderUpdate(o)
	}
}

// Emulate feeds one market execution. It returns what downstream consumers should see
// instead of e: one synthetic fill per matched order followed by whatever size of e no
// order consumed, or e itself when nothing matched.
func (s *Simulator) Emulate(e domain.Execution) []domain.Execution {
	s.clock.MoveTo(e.Date)

	residual := e.Size
	var out []domain.Execution
	kept := s.resident[:0]
	stopped := false

	for _, r := range s.resident {
		if e.Mills < r.AcceptanceMills {
			kept = append(kept, r)
			continue
		}
		if r.CancelDeadline != 0 && r.CancelDeadline <= e.Mills {
			s.terminate(r, domain.Canceled, e.Mills)
			continue
		}
		if stopped || !residual.IsPositive() {
			kept = append(kept, r)
			continue
		}

		tradable := r.tradableByPrice(e, s.setting.MinBidPrice)
		switch r.Condition {
		case domain.FillOrKill:
			if !tradable || r.Remaining.GreaterThan(residual) {
				s.terminate(r, domain.Canceled, e.Mills)
				continue
			}
		case domain.ImmediateOrCancel:
			if !tradable {
				s.terminate(r, domain.Canceled, e.Mills)
				continue
			}
		}

		if !tradable {
			kept = append(kept, r)
			continue
		}

		size := decimal.Min(residual, r.Remaining)
		price := r.fill(size, e.Price)
		residual = residual.Sub(size)

		fill := domain.NewExecution().
			ID(e.ID).
			Side(r.Side).
			Size(size).
			CumulativeSize(size).
			Price(price).
			Date(e.Date).
			Consecutive(e.Consecutive).
			Delay(domain.DelaySynthetic).
			Build()
		s.fills = append(s.fills, fill)

		// IOC leaves after one match; its unfilled size stays in Remaining.
		if r.Remaining.IsZero() || r.Condition == domain.ImmediateOrCancel {
			s.terminate(r, domain.Completed, e.Mills)
		} else {
			kept = append(kept, r)
		}
		s.notify(r.Snapshot())
		for _, l := range s.listeners {
			l.OnFill(r.ID, fill)
		}

		downstream := fill
		downstream.Side = e.Side
		if len(out) > 0 {
			downstream.Consecutive = continuation(e.Side)
		}
		out = append(out, downstream)

		if s.exclusive {
			stopped = true
		}
	}
	s.resident = kept

	switch {
	case len(out) == 0:
		out = append(out, e)
	case !s.exclusive && residual.IsPositive():
		rest := e.WithSize(residual)
		rest.Consecutive = continuation(e.Side)
		out = append(out, rest)
	}

	s.clock.Drain()
	return out
}

// continuation tags the pieces of a split print after the first as same-side
// continuations of it.
func continuation(side domain.Side) int {
	if side == domain.Buy {
		return domain.ConsecutiveSameBuyer
	}
	return domain.ConsecutiveSameSeller
}

// Orders returns snapshots of every order ever requested, in request order.
func (s *Simulator) Orders() []domain.Order {
	out := make([]domain.Order, len(s.orders))
	for i, r := range s.orders {
		out[i] = r.Snapshot()
	}
	return out
}

// OrdersIn returns the orders currently in state.
func (s *Simulator) OrdersIn(state domain.OrderState) []domain.Order {
	var out []domain.Order
	for _, r := range s.orders {
		if r.State == state {
			out = append(out, r.Snapshot())
		}
	}
	return out
}

// Order looks up one order by id.
func (s *Simulator) Order(id string) (domain.Order, bool) {
	r, ok := s.byID[id]
	if !ok {
		return domain.Order{}, false
	}
	return r.Snapshot(), true
}

// Resident returns the number of orders still eligible for matching.
func (s *Simulator) Resident() int { return len(s.resident) }

// Executions returns every fill produced so far, each carrying its order's side.
func (s *Simulator) Executions() []domain.Execution {
	return append([]domain.Execution(nil), s.fills...)
}
