package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/orderbook"
	"github.com/teletha/cointoss-sub007/internal/simulator"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// Paper decorates a backend Service for paper trading. Taker orders fill at once at the
// price the opposite ladder predicts for their size; maker orders and cancels go to the
// matching simulator. Everything else is served by the backend.
type Paper struct {
	Service

	mu     sync.Locker
	pair   *orderbook.Pair
	sim    *simulator.Simulator
	logger *slog.Logger

	takers  []domain.Order
	byID    map[string]int
	fills   []domain.Execution
	fillSeq int64
}

// NewPaper builds the decorator. mu guards pair and sim and must be the lock held by
// whoever feeds them.
func NewPaper(backend Service, pair *orderbook.Pair, sim *simulator.Simulator, mu sync.Locker, logger *slog.Logger) *Paper {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Paper{
		Service: backend,
		mu:      mu,
		pair:    pair,
		sim:     sim,
		logger:  logger,
		byID:    make(map[string]int),
	}
}

// Request fills takers against the book and routes makers to the simulator.
func (p *Paper) Request(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if order.Price.IsPositive() {
		return p.sim.Request(order)
	}
	if !order.Size.IsPositive() {
		return domain.Order{}, domain.ErrInvalidOrderSize
	}

	price := p.pair.PredictExecutionPrice(order.Side, order.Size)
	if !price.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: %s %s", ErrNoLiquidity, order.Side, order.Size)
	}

	now := p.sim.Now()
	filled := order
	filled.ID = "PAPER-" + uuid.NewString()
	filled.Type = domain.Taker
	filled.Price = price
	filled.ExecutedSize = order.Size
	filled.RemainingSize = decimal.Zero
	filled.State = domain.Completed
	filled.CreationTime = now
	filled.TerminationTime = now

	p.fillSeq++
	fill := domain.NewExecution().
		ID(p.fillSeq).
		Side(order.Side).
		Size(order.Size).
		CumulativeSize(order.Size).
		Price(price).
		Date(now).
		Delay(domain.DelaySynthetic).
		Build()

	p.byID[filled.ID] = len(p.takers)
	p.takers = append(p.takers, filled)
	p.fills = append(p.fills, fill)

	p.logger.Info("PAPER_TAKER_FILLED",
		slog.String("id", filled.ID),
		slog.String("side", order.Side.String()),
		slog.String("price", price.String()),
		slog.String("size", order.Size.String()))
	return filled, nil
}

// Cancel routes to the simulator. Paper takers are already complete.
func (p *Paper) Cancel(ctx context.Context, orderID string) (<-chan domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byID[orderID]; ok {
		return nil, fmt.Errorf("%w: %s", simulator.ErrTakerNotCancelable, orderID)
	}
	return p.sim.Cancel(orderID)
}

// Orders lists paper takers followed by the simulator's orders.
func (p *Paper) Orders(ctx context.Context) ([]domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := append([]domain.Order(nil), p.takers...)
	return append(out, p.sim.Orders()...), nil
}

// Fills returns taker fills followed by maker fills, each with its order's side.
func (p *Paper) Fills() []domain.Execution {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allFills()
}

func (p *Paper) allFills() []domain.Execution {
	out := append([]domain.Execution(nil), p.fills...)
	return append(out, p.sim.Executions()...)
}

// Position folds every fill into a net position.
func (p *Paper) Position() domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := domain.Position{Symbol: p.sim.Setting().Symbol}
	for _, f := range p.allFills() {
		pos.Apply(f.Side, f.Size, f.Price)
	}
	return pos
}
