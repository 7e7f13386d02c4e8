package simulator

import (
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// ResidentOrder is the simulator's mutable record of an order. Callers only ever see
// domain.Order snapshots of it.
type ResidentOrder struct {
	ID        string
	Side      domain.Side
	Type      domain.OrderType
	Condition domain.QuantityCondition

	Size      decimal.Decimal
	Remaining decimal.Decimal
	Executed  decimal.Decimal

	// Price is the limit for makers and the running VWAP for takers.
	Price decimal.Decimal

	State domain.OrderState

	AcceptanceMills int64
	CancelDeadline  int64 // 0 when no cancel is pending
	TerminatedMills int64

	// clamp is the taker's best-known fill price, moved only in the order's favor.
	clamp    decimal.Decimal
	clampSet bool

	canceled chan domain.Order
}

// Snapshot returns the caller-facing view of o.
func (o *ResidentOrder) Snapshot() domain.Order {
	out := domain.Order{
		ID:                o.ID,
		Side:              o.Side,
		Type:              o.Type,
		QuantityCondition: o.Condition,
		Price:             o.Price,
		Size:              o.Size,
		RemainingSize:     o.Remaining,
		ExecutedSize:      o.Executed,
		State:             o.State,
		CreationTime:      time.UnixMilli(o.AcceptanceMills).UTC(),
	}
	if o.TerminatedMills != 0 {
		out.TerminationTime = time.UnixMilli(o.TerminatedMills).UTC()
	}
	return out
}

// tradableByPrice reports whether e trades through o's limit. Takers always trade.
func (o *ResidentOrder) tradableByPrice(e domain.Execution, minBid decimal.Decimal) bool {
	if o.Type == domain.Taker {
		return true
	}
	if o.Side == domain.Buy {
		return e.Price.LessThanOrEqual(o.Price) || o.Price.Equal(minBid)
	}
	return e.Price.GreaterThanOrEqual(o.Price)
}

// fill books size against o and returns the price the fill happened at.
func (o *ResidentOrder) fill(size, price decimal.Decimal) decimal.Decimal {
	if o.Type == domain.Taker {
		switch {
		case !o.clampSet:
			o.clamp, o.clampSet = price, true
		case o.Side == domain.Buy:
			o.clamp = decimal.Max(o.clamp, price)
		default:
			o.clamp = decimal.Min(o.clamp, price)
		}

		notional := o.Price.Mul(o.Executed).Add(o.clamp.Mul(size))
		vwap, err := notional.Div(o.Executed.Add(size))
		if err == nil {
			o.Price = vwap
		}
		price = o.clamp
	} else {
		price = o.Price
	}

	o.Executed = o.Executed.Add(size)
	o.Remaining = o.Remaining.Sub(size)
	if o.Remaining.IsNegative() {
		panic("SIMULATOR_INVARIANT_NEGATIVE_REMAINING: " + o.ID)
	}
	return price
}
