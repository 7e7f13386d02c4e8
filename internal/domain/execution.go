package domain

import (
	"fmt"
	"time"

	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// Consecutive-trade classification of an execution relative to the previous one.
const (
	ConsecutiveDifference       = 0 // new millisecond or side flip
	ConsecutiveSameBuyer        = 1
	ConsecutiveSameSeller       = 2
	ConsecutiveSameBoth         = 3
	ConsecutivePseudoDifference = 4 // synthesized from a candle, not a real print
)

// Delay tags. Non-negative values are the observed exchange delay in seconds.
const (
	DelayInestimable = 0
	DelayHuge        = -1
	DelaySynthetic   = -2 // fill produced by the simulator
)

// Execution is a single trade print. Values are immutable once built; use
// ExecutionBuilder to create one and At to derive a re-timed copy.
type Execution struct {
	ID             int64           `json:"id"`
	Side           Side            `json:"side"`
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	CumulativeSize decimal.Decimal `json:"cumulative_size"`
	Date           time.Time       `json:"date"`
	Mills          int64           `json:"mills"`
	Consecutive    int             `json:"consecutive"`
	Delay          int             `json:"delay"`
}

// At returns a copy of e stamped with date. This is the only way to re-time an execution.
func (e Execution) At(date time.Time) Execution {
	e.Date = date.UTC()
	e.Mills = date.UnixMilli()
	return e
}

// WithSize returns a copy of e carrying a different size.
func (e Execution) WithSize(size decimal.Decimal) Execution {
	e.Size = size
	return e
}

// IsSynthetic reports whether the simulator produced e.
func (e Execution) IsSynthetic() bool {
	return e.Delay == DelaySynthetic
}

func (e Execution) String() string {
	return fmt.Sprintf("%d %s %s %s@%s %d %d",
		e.ID, e.Date.Format("2006-01-02T15:04:05.000"), e.Side, e.Size, e.Price, e.Consecutive, e.Delay)
}

// ExecutionBuilder assembles an Execution with chained setters.
type ExecutionBuilder struct {
	e Execution
}

// NewExecution starts a builder for a buy print at the unix epoch.
func NewExecution() *ExecutionBuilder {
	return &ExecutionBuilder{e: Execution{Side: Buy, Date: time.UnixMilli(0).UTC()}}
}

func (b *ExecutionBuilder) ID(id int64) *ExecutionBuilder { b.e.ID = id; return b }

func (b *ExecutionBuilder) Side(s Side) *ExecutionBuilder { b.e.Side = s; return b }

func (b *ExecutionBuilder) Price(p decimal.Decimal) *ExecutionBuilder { b.e.Price = p; return b }

func (b *ExecutionBuilder) Size(s decimal.Decimal) *ExecutionBuilder { b.e.Size = s; return b }

func (b *ExecutionBuilder) CumulativeSize(s decimal.Decimal) *ExecutionBuilder {
	b.e.CumulativeSize = s
	return b
}

// Date sets the timestamp; Build derives Mills from it.
func (b *ExecutionBuilder) Date(t time.Time) *ExecutionBuilder { b.e.Date = t.UTC(); return b }

// Mills sets the timestamp from epoch milliseconds.
func (b *ExecutionBuilder) Mills(ms int64) *ExecutionBuilder {
	b.e.Date = time.UnixMilli(ms).UTC()
	return b
}

func (b *ExecutionBuilder) Consecutive(c int) *ExecutionBuilder { b.e.Consecutive = c; return b }

func (b *ExecutionBuilder) Delay(d int) *ExecutionBuilder { b.e.Delay = d; return b }

// Build returns the finished value. The builder may be reused afterwards.
func (b *ExecutionBuilder) Build() Execution {
	e := b.e
	e.Mills = e.Date.UnixMilli()
	return e
}
