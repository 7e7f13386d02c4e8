package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of an order or the aggressor side of an execution.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

// Inverse returns the opposite side.
func (s Side) Inverse() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsBuy reports whether s is Buy.
func (s Side) IsBuy() bool { return s == Buy }

// ParseSide accepts "BUY"/"SELL" in any case and the short forms "B"/"S".
func ParseSide(v string) (Side, error) {
	switch v {
	case "BUY", "buy", "Buy", "B", "b":
		return Buy, nil
	case "SELL", "sell", "Sell", "S", "s":
		return Sell, nil
	}
	return 0, fmt.Errorf("domain: unknown side %q", v)
}

// MarshalText encodes the unset side as an empty string so zero values round-trip.
func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case 0:
		return []byte{}, nil
	case Buy, Sell:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("domain: unknown side %d", uint8(s))
}

func (s *Side) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*s = 0
		return nil
	}
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// OrderType separates resting limit orders from orders that take liquidity.
type OrderType uint8

const (
	Maker OrderType = iota + 1
	Taker
)

func (t OrderType) String() string {
	if t == Taker {
		return "TAKER"
	}
	return "MAKER"
}

// ParseOrderType accepts MAKER and TAKER in any case. An empty string is the unset type.
func ParseOrderType(v string) (OrderType, error) {
	switch strings.ToUpper(v) {
	case "":
		return 0, nil
	case "MAKER":
		return Maker, nil
	case "TAKER":
		return Taker, nil
	}
	return 0, fmt.Errorf("domain: unknown order type %q", v)
}

func (t OrderType) MarshalText() ([]byte, error) {
	switch t {
	case 0:
		return []byte{}, nil
	case Maker, Taker:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("domain: unknown order type %d", uint8(t))
}

func (t *OrderType) UnmarshalText(b []byte) error {
	v, err := ParseOrderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// QuantityCondition constrains how much of an order may fill.
type QuantityCondition uint8

const (
	GoodTillCanceled QuantityCondition = iota
	FillOrKill
	ImmediateOrCancel
)

func (q QuantityCondition) String() string {
	switch q {
	case FillOrKill:
		return "FOK"
	case ImmediateOrCancel:
		return "IOC"
	default:
		return "GTC"
	}
}

// ParseQuantityCondition accepts GTC, FOK and IOC. An empty string means GTC.
func ParseQuantityCondition(v string) (QuantityCondition, error) {
	switch strings.ToUpper(v) {
	case "", "GTC":
		return GoodTillCanceled, nil
	case "FOK":
		return FillOrKill, nil
	case "IOC":
		return ImmediateOrCancel, nil
	}
	return 0, fmt.Errorf("domain: unknown quantity condition %q", v)
}

func (q QuantityCondition) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

func (q *QuantityCondition) UnmarshalText(b []byte) error {
	v, err := ParseQuantityCondition(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// OrderState is the lifecycle stage of an order.
// Created -> Active -> {Completed, Canceled}.
type OrderState uint8

const (
	Created OrderState = iota
	Active
	Completed
	Canceled
)

func (s OrderState) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Completed:
		return "COMPLETED"
	case Canceled:
		return "CANCELED"
	default:
		return "CREATED"
	}
}

// ParseOrderState accepts the names printed by String in any case.
func ParseOrderState(v string) (OrderState, error) {
	switch strings.ToUpper(v) {
	case "CREATED":
		return Created, nil
	case "ACTIVE":
		return Active, nil
	case "COMPLETED":
		return Completed, nil
	case "CANCELED":
		return Canceled, nil
	}
	return 0, fmt.Errorf("domain: unknown order state %q", v)
}

func (s OrderState) MarshalText() ([]byte, error) {
	if s > Canceled {
		return nil, fmt.Errorf("domain: unknown order state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderState) UnmarshalText(b []byte) error {
	v, err := ParseOrderState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// IsTerminated reports whether no further transition is possible.
func (s OrderState) IsTerminated() bool {
	return s == Completed || s == Canceled
}
