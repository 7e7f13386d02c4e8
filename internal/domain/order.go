package domain

import (
	"errors"
	"time"

	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// ErrInvalidOrderSize is returned by OrderBuilder.Build for a non-positive size.
var ErrInvalidOrderSize = errors.New("domain: order size must be positive")

// ErrInvalidOrderSide is returned by OrderBuilder.Build when the side is neither Buy nor Sell.
var ErrInvalidOrderSide = errors.New("domain: order side must be BUY or SELL")

// Order is an immutable snapshot of an order as seen by callers.
// A zero price marks a taker (market) order.
type Order struct {
	ID                string            `json:"id"`
	Side              Side              `json:"side"`
	Type              OrderType         `json:"type"`
	QuantityCondition QuantityCondition `json:"quantity_condition"`
	Price             decimal.Decimal   `json:"price"`
	Size              decimal.Decimal   `json:"size"`
	RemainingSize     decimal.Decimal   `json:"remaining_size"`
	ExecutedSize      decimal.Decimal   `json:"executed_size"`
	State             OrderState        `json:"state"`
	CreationTime      time.Time         `json:"creation_time"`
	TerminationTime   time.Time         `json:"termination_time,omitempty"`
}

// IsOpen checks if the order can still trade.
func (o *Order) IsOpen() bool {
	return o.State == Created || o.State == Active
}

// IsTaker reports whether the order takes liquidity at market.
func (o *Order) IsTaker() bool {
	return o.Type == Taker
}

// OrderBuilder assembles an Order with chained setters.
type OrderBuilder struct {
	o Order
}

// NewOrder starts a builder for a side and size.
func NewOrder(side Side, size decimal.Decimal) *OrderBuilder {
	return &OrderBuilder{o: Order{Side: side, Size: size}}
}

// Price sets a limit price; a zero or negative price means taker.
func (b *OrderBuilder) Price(p decimal.Decimal) *OrderBuilder {
	if p.IsNegative() {
		p = decimal.Zero
	}
	b.o.Price = p
	return b
}

func (b *OrderBuilder) ID(id string) *OrderBuilder { b.o.ID = id; return b }

func (b *OrderBuilder) QuantityCondition(q QuantityCondition) *OrderBuilder {
	b.o.QuantityCondition = q
	return b
}

func (b *OrderBuilder) FillOrKill() *OrderBuilder { return b.QuantityCondition(FillOrKill) }

func (b *OrderBuilder) ImmediateOrCancel() *OrderBuilder {
	return b.QuantityCondition(ImmediateOrCancel)
}

// Build validates the size and derives the order type and remaining size.
func (b *OrderBuilder) Build() (Order, error) {
	o := b.o
	if !o.Size.IsPositive() {
		return Order{}, ErrInvalidOrderSize
	}
	if o.Side != Buy && o.Side != Sell {
		return Order{}, ErrInvalidOrderSide
	}
	o.Type = Maker
	if o.Price.IsZero() {
		o.Type = Taker
	}
	o.RemainingSize = o.Size
	o.ExecutedSize = decimal.Zero
	o.State = Created
	return o, nil
}

// MustBuild is Build for orders known to be valid. It panics otherwise.
func (b *OrderBuilder) MustBuild() Order {
	o, err := b.Build()
	if err != nil {
		panic(err)
	}
	return o
}
