// Package orderbook keeps one price ladder per book side and answers the depth queries
// order placement needs. Ladders are fed by book diffs and full snapshots; they never see
// simulated orders.
package orderbook

import (
	"errors"
	"fmt"

	"github.com/google/btree"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// EvictionBatch caps how many levels a single Evict call removes.
const EvictionBatch = 500

const btreeDegree = 32

var ErrInvalidWidth = errors.New("orderbook: grouping width must be positive")

// Level is one price point of a ladder.
type Level = domain.Level

// Ladder is one side of the book. Iteration order is always best first: prices descend
// on the bid side and ascend on the ask side. A Ladder is not safe for concurrent use.
type Ladder struct {
	side       domain.Side
	priceScale int32
	sizeScale  int32
	maxEntries int
	native     decimal.Decimal

	base *btree.BTreeG[Level]

	// grouped is nil while the ladder is shown at native granularity.
	grouped *btree.BTreeG[Level]
	width   decimal.Decimal
}

// NewLadder builds an empty ladder for side. Buy is the bid side.
func NewLadder(side domain.Side, setting domain.MarketSetting) *Ladder {
	return &Ladder{
		side:       side,
		priceScale: setting.PriceScale,
		sizeScale:  setting.SizeScale,
		maxEntries: setting.MaxLadderEntries,
		native:     setting.TickSize,
		width:      setting.TickSize,
		base:       btree.NewG(btreeDegree, lessFor(side)),
	}
}

func lessFor(side domain.Side) btree.LessFunc[Level] {
	if side == domain.Buy {
		return func(a, b Level) bool { return a.Price > b.Price }
	}
	return func(a, b Level) bool { return a.Price < b.Price }
}

// Side returns the side the ladder holds.
func (l *Ladder) Side() domain.Side { return l.side }

// Len returns the number of base levels.
func (l *Ladder) Len() int { return l.base.Len() }

// Best returns the best level.
func (l *Ladder) Best() (Level, bool) { return l.base.Min() }

// Worst returns the level furthest from the spread.
func (l *Ladder) Worst() (Level, bool) { return l.base.Max() }

// BestPrice returns the price of the best level.
func (l *Ladder) BestPrice() (decimal.Decimal, bool) {
	best, ok := l.base.Min()
	if !ok {
		return decimal.Zero, false
	}
	return l.price(best.Price), true
}

// BestSize returns the size of the best level rounded to the size scale, or zero.
func (l *Ladder) BestSize() decimal.Decimal {
	best, ok := l.base.Min()
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat32(best.Size).Round(l.sizeScale, decimal.HalfUp)
}

// Levels returns the base levels, best first.
func (l *Ladder) Levels() []Level {
	return collect(l.base)
}

// GroupedLevels returns the active view: the grouped buckets when grouping is on,
// the base levels otherwise.
func (l *Ladder) GroupedLevels() []Level {
	return collect(l.view())
}

// Width returns the active grouping width.
func (l *Ladder) Width() decimal.Decimal {
	if l.grouped == nil {
		return l.native
	}
	return l.width
}

func (l *Ladder) view() *btree.BTreeG[Level] {
	if l.grouped == nil {
		return l.base
	}
	return l.grouped
}

func collect(t *btree.BTreeG[Level]) []Level {
	out := make([]Level, 0, t.Len())
	t.Ascend(func(lv Level) bool {
		out = append(out, lv)
		return true
	})
	return out
}

// Apply upserts a level, or removes it when size is zero.
func (l *Ladder) Apply(price float64, size float32) {
	if size == 0 {
		removed, ok := l.base.Delete(Level{Price: price})
		if ok && l.grouped != nil {
			l.updateGroup(removed.Price, -float64(removed.Size))
		}
		return
	}

	prev, replaced := l.base.ReplaceOrInsert(Level{Price: price, Size: size})
	if l.grouped != nil {
		delta := float64(size)
		if replaced {
			delta -= float64(prev.Size)
		}
		l.updateGroup(price, delta)
	}
}

// Update applies a batch of diffs and then evicts past the bound.
func (l *Ladder) Update(levels []Level) {
	for _, lv := range levels {
		l.Apply(lv.Price, lv.Size)
	}
	l.Evict()
}

// Snapshot replaces the whole ladder with levels.
func (l *Ladder) Snapshot(levels []Level) {
	l.base.Clear(false)
	if l.grouped != nil {
		l.grouped.Clear(false)
	}
	l.Update(levels)
}

// Evict drops the worst levels beyond the entry bound, at most EvictionBatch per call.
// It returns the number of levels removed.
func (l *Ladder) Evict() int {
	excess := l.base.Len() - l.maxEntries
	if l.maxEntries <= 0 || excess <= 0 {
		return 0
	}
	n := min(EvictionBatch, excess)
	for i := 0; i < n; i++ {
		removed, _ := l.base.DeleteMax()
		if l.grouped != nil {
			l.updateGroup(removed.Price, -float64(removed.Size))
		}
	}
	return n
}

// GroupBy switches the grouped view. A width at or below the native tick discards the
// view; a new width rebuilds it from the base levels. It returns the active levels.
func (l *Ladder) GroupBy(width decimal.Decimal) ([]Level, error) {
	if !width.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidWidth, width)
	}

	switch {
	case width.LessThanOrEqual(l.native):
		l.grouped = nil
		l.width = l.native
	case l.grouped == nil || !width.Equal(l.width):
		l.width = width
		l.grouped = btree.NewG(btreeDegree, lessFor(l.side))
		l.base.Ascend(func(lv Level) bool {
			l.updateGroup(lv.Price, float64(lv.Size))
			return true
		})
	}
	return l.GroupedLevels(), nil
}

// updateGroup adds delta to the bucket holding price. A bucket whose size rounds down to
// zero at the size scale is dropped.
func (l *Ladder) updateGroup(price float64, delta float64) {
	key := l.bucket(price)
	page, _ := l.grouped.Get(Level{Price: key})
	size := float64(page.Size) + delta

	if decimal.NewFromFloat(size).Round(l.sizeScale, decimal.Down).Sign() <= 0 {
		l.grouped.Delete(Level{Price: key})
		return
	}
	l.grouped.ReplaceOrInsert(Level{Price: key, Size: float32(size)})
}

// bucket returns the grouped key of price: floored to the width, rounded to the price scale.
func (l *Ladder) bucket(price float64) float64 {
	return l.floor(decimal.NewFromFloat(price)).Float64()
}

func (l *Ladder) floor(price decimal.Decimal) decimal.Decimal {
	return price.Floor(l.Width()).Round(l.priceScale, decimal.HalfUp)
}

func (l *Ladder) price(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p)
}

// Trim removes the base levels priced better than a traded price, which the feed may have
// left behind. Grouped buckets past the same price are dropped as well.
func (l *Ladder) Trim(hint float64) int {
	n := 0
	for {
		best, ok := l.base.Min()
		if !ok || !l.better(best.Price, hint) {
			break
		}
		l.base.DeleteMin()
		n++
		if l.grouped != nil {
			l.updateGroup(best.Price, -float64(best.Size))
		}
	}

	if n > 0 && l.grouped != nil {
		h := l.bucket(hint)
		for {
			first, ok := l.grouped.Min()
			if !ok || !l.better(first.Price, h) {
				break
			}
			l.grouped.DeleteMin()
		}
	}
	return n
}

// better reports whether a is closer to the spread than b.
func (l *Ladder) better(a, b float64) bool {
	if l.side == domain.Buy {
		return a > b
	}
	return a < b
}
