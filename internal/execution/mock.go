package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/internal/simulator"
)

// Mock is a backend that only logs and records orders. Requested orders stay active
// until canceled.
type Mock struct {
	setting domain.MarketSetting

	mu     sync.Mutex
	orders []domain.Order
}

func NewMock(setting domain.MarketSetting) *Mock {
	return &Mock{setting: setting}
}

func (m *Mock) Request(ctx context.Context, order domain.Order) (domain.Order, error) {
	if !order.Size.IsPositive() {
		return domain.Order{}, domain.ErrInvalidOrderSize
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	order.ID = fmt.Sprintf("MOCK-%d", len(m.orders))
	order.Type = domain.Maker
	if !order.Price.IsPositive() {
		order.Type = domain.Taker
	}
	order.State = domain.Active
	order.RemainingSize = order.Size
	m.orders = append(m.orders, order)

	slog.Info("MOCK EXECUTION: Request",
		slog.String("id", order.ID),
		slog.String("side", order.Side.String()),
		slog.String("price", order.Price.String()),
		slog.String("size", order.Size.String()))
	return order, nil
}

func (m *Mock) Cancel(ctx context.Context, orderID string) (<-chan domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.orders {
		if m.orders[i].ID != orderID {
			continue
		}
		if m.orders[i].State.IsTerminated() {
			return nil, fmt.Errorf("%w: %s", simulator.ErrOrderTerminated, orderID)
		}
		m.orders[i].State = domain.Canceled
		ch := make(chan domain.Order, 1)
		ch <- m.orders[i]
		close(ch)
		slog.Info("MOCK EXECUTION: Cancel", slog.String("id", orderID))
		return ch, nil
	}
	return nil, fmt.Errorf("%w: %s", simulator.ErrOrderNotFound, orderID)
}

func (m *Mock) Orders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Order(nil), m.orders...), nil
}

func (m *Mock) Setting() domain.MarketSetting { return m.setting }
