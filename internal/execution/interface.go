package execution

import (
	"context"
	"errors"

	"github.com/teletha/cointoss-sub007/internal/domain"
)

var (
	ErrNoLiquidity = errors.New("execution: no liquidity on the opposite side")
	ErrUnknownMode = errors.New("execution: unknown mode")
)

// Service is the order API a strategy trades through.
type Service interface {
	// Request submits an order and returns its accepted snapshot.
	Request(ctx context.Context, order domain.Order) (domain.Order, error)

	// Cancel requests cancellation. The channel yields the canceled snapshot once the
	// cancel lands and is then closed; it is closed without a value if the order
	// completes first.
	Cancel(ctx context.Context, orderID string) (<-chan domain.Order, error)

	// Orders lists every order the service has accepted.
	Orders(ctx context.Context) ([]domain.Order, error)

	// Setting describes the market the service trades.
	Setting() domain.MarketSetting
}
