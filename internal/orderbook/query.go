package orderbook

import (
	"github.com/google/btree"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// PredictExecutionPrice returns the average price a taker of size would pay walking the
// ladder from the best level. When the ladder holds less than size, the average covers
// the available depth only. The result is rounded half-up to the price scale.
func (l *Ladder) PredictExecutionPrice(size decimal.Decimal) decimal.Decimal {
	if !size.IsPositive() {
		return decimal.Zero
	}

	total := decimal.Zero
	consumed := decimal.Zero
	remaining := size
	l.base.Ascend(func(lv Level) bool {
		take := decimal.Min(decimal.NewFromFloat32(lv.Size), remaining)
		total = total.Add(take.Mul(l.price(lv.Price)))
		consumed = consumed.Add(take)
		remaining = remaining.Sub(take)
		return remaining.IsPositive()
	})

	avg, err := total.Div(consumed)
	if err != nil {
		return decimal.Zero
	}
	return avg.Round(l.priceScale, decimal.HalfUp)
}

// BestPriceWithThreshold walks the levels at or behind start, best first, until their
// sizes add up to threshold. It returns that level's price moved offset away from the
// spread: down on the bid side, up on the ask side.
func (l *Ladder) BestPriceWithThreshold(start, threshold, offset decimal.Decimal) (decimal.Decimal, bool) {
	var (
		found decimal.Decimal
		ok    bool
		total = decimal.Zero
	)
	l.base.AscendGreaterOrEqual(Level{Price: start.Float64()}, func(lv Level) bool {
		total = total.Add(decimal.NewFromFloat32(lv.Size))
		if total.GreaterThanOrEqual(threshold) {
			found, ok = l.price(lv.Price), true
			return false
		}
		return true
	})
	if !ok {
		return decimal.Zero, false
	}
	if l.side == domain.Buy {
		return found.Sub(offset), true
	}
	return found.Add(offset), true
}

// LargestOrderInRange returns the biggest level of the active view priced within
// [low, high] and within the ladder's own price span. Prices are compared after
// flooring to the grouping width. An empty ladder, or a range outside the ladder,
// yields a zero-size level at low.
func (l *Ladder) LargestOrderInRange(low, high decimal.Decimal) Level {
	largest := Level{Price: low.Float64()}

	best, ok := l.base.Min()
	if !ok {
		return largest
	}
	worst, _ := l.base.Max()
	lo, hi := l.price(best.Price), l.price(worst.Price)
	if l.side == domain.Buy {
		lo, hi = hi, lo
	}
	if low.GreaterThan(hi) || high.LessThan(lo) {
		return largest
	}

	lower := l.floor(decimal.Max(lo, low))
	upper := l.floor(decimal.Min(hi, high))
	if !lower.LessThan(upper) {
		return largest
	}

	l.walkRange(l.view(), lower.Float64(), upper.Float64(), func(lv Level) {
		if largest.Size < lv.Size {
			largest = lv
		}
	})
	return largest
}

// walkRange visits every level of t priced within [lower, upper], in book order.
func (l *Ladder) walkRange(t *btree.BTreeG[Level], lower, upper float64, fn func(Level)) {
	from, to := lower, upper
	if l.side == domain.Buy {
		from, to = upper, lower
	}
	t.AscendGreaterOrEqual(Level{Price: from}, func(lv Level) bool {
		if l.better(to, lv.Price) {
			return false
		}
		fn(lv)
		return true
	})
}
