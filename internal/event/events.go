package event

import (
	"encoding/json"
	"fmt"

	"github.com/teletha/cointoss-sub007/internal/domain"
)

// Type defines the type of event.
type Type uint16

const (
	EvExecution Type = iota + 1
	EvBookDiff
	EvOrderUpdate
	EvSystemHalt
)

func (t Type) String() string {
	switch t {
	case EvExecution:
		return "EXECUTION"
	case EvBookDiff:
		return "BOOK_DIFF"
	case EvOrderUpdate:
		return "ORDER_UPDATE"
	case EvSystemHalt:
		return "SYSTEM_HALT"
	}
	return fmt.Sprintf("Type(%d)", uint16(t))
}

// Event is the interface for all engine events.
type Event interface {
	GetSeq() uint64
	GetTs() int64 // unix milliseconds
	GetType() Type
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }
func (e BaseEvent) GetTs() int64   { return e.Ts }

// ExecutionEvent carries one market print.
type ExecutionEvent struct {
	BaseEvent
	Symbol    string           `json:"symbol"`
	Execution domain.Execution `json:"execution"`
}

func (e ExecutionEvent) GetType() Type { return EvExecution }

// BookDiffEvent carries one order book update.
type BookDiffEvent struct {
	BaseEvent
	Symbol string          `json:"symbol"`
	Diff   domain.BookDiff `json:"diff"`
}

func (e BookDiffEvent) GetType() Type { return EvBookDiff }

// OrderUpdateEvent records an order state change produced by the simulator.
type OrderUpdateEvent struct {
	BaseEvent
	Order domain.Order `json:"order"`
}

func (e OrderUpdateEvent) GetType() Type { return EvOrderUpdate }

// SystemHaltEvent stops the engine loop.
type SystemHaltEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

func (e SystemHaltEvent) GetType() Type { return EvSystemHalt }

// Decode rebuilds a stored event from its type tag and JSON payload.
func Decode(t Type, payload []byte) (Event, error) {
	var ev Event
	switch t {
	case EvExecution:
		ev = &ExecutionEvent{}
	case EvBookDiff:
		ev = &BookDiffEvent{}
	case EvOrderUpdate:
		ev = &OrderUpdateEvent{}
	case EvSystemHalt:
		ev = &SystemHaltEvent{}
	default:
		return nil, fmt.Errorf("unknown event type %d", t)
	}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return ev, nil
}
