// Package sequence turns timestamped trade prints into uniquely identified executions.
//
// IDs are derived from the epoch millisecond multiplied by a padding factor, leaving
// padding-1 slots for prints that share a millisecond. Each print is also classified
// against the previous one: a new millisecond or a flipped side is a "difference",
// otherwise the print continues the same buyer or seller.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
	"github.com/teletha/cointoss-sub007/pkg/safe"
)

// DefaultPadding leaves room for 9999 prints per millisecond.
const DefaultPadding = 10000

var (
	ErrInvalidPadding   = errors.New("sequence: padding must be positive")
	ErrPaddingExhausted = errors.New("sequence: too many executions in one millisecond")
)

// Sequencer assigns IDs and consecutive classifications. It is not safe for concurrent use.
type Sequencer struct {
	padding int64

	lastMills int64
	lastSide  domain.Side
	count     int64
	started   bool
}

// New returns a sequencer with the given padding.
func New(padding int64) (*Sequencer, error) {
	if padding <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPadding, padding)
	}
	return &Sequencer{padding: padding}, nil
}

// Padding returns the ID multiplier.
func (s *Sequencer) Padding() int64 { return s.padding }

// ComputeID returns the first ID of a millisecond.
func (s *Sequencer) ComputeID(mills int64) int64 {
	return safe.SafeMul(mills, s.padding)
}

// EpochMills recovers the millisecond an ID was issued for.
func (s *Sequencer) EpochMills(id int64) int64 {
	return id / s.padding
}

// DateOf is EpochMills as a UTC time.
func (s *Sequencer) DateOf(id int64) time.Time {
	return time.UnixMilli(s.EpochMills(id)).UTC()
}

// Classify returns the consecutive classification of a print without issuing an ID.
// It shares state with Next.
func (s *Sequencer) Classify(side domain.Side, mills int64) int {
	c, _ := s.advance(side, mills)
	return c
}

// Next builds the execution for a print.
func (s *Sequencer) Next(side domain.Side, size, price decimal.Decimal, mills int64) (domain.Execution, error) {
	if s.started && mills == s.lastMills && s.count+1 >= s.padding {
		return domain.Execution{}, fmt.Errorf("%w: %d at %d", ErrPaddingExhausted, s.count+1, mills)
	}
	consecutive, offset := s.advance(side, mills)

	return domain.NewExecution().
		ID(s.ComputeID(mills) + offset).
		Side(side).
		Size(size).
		CumulativeSize(size).
		Price(price).
		Mills(mills).
		Consecutive(consecutive).
		Build(), nil
}

func (s *Sequencer) advance(side domain.Side, mills int64) (consecutive int, offset int64) {
	if !s.started || mills != s.lastMills {
		s.started = true
		s.lastMills = mills
		s.lastSide = side
		s.count = 0
		return domain.ConsecutiveDifference, 0
	}

	s.count++
	consecutive = domain.ConsecutiveDifference
	if side == s.lastSide {
		consecutive = domain.ConsecutiveSameSeller
		if side == domain.Buy {
			consecutive = domain.ConsecutiveSameBuyer
		}
	}
	s.lastSide = side
	return consecutive, s.count
}

// Reset forgets the previous print.
func (s *Sequencer) Reset() {
	*s = Sequencer{padding: s.padding}
}
