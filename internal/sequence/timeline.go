package sequence

import (
	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// TakerTimeline folds consecutive same-side prints into one taker. A taker is emitted,
// with CumulativeSize holding the folded volume, once the next non-continuing print shows up.
type TakerTimeline struct {
	pending     domain.Execution
	accumulated decimal.Decimal
	has         bool
}

// Observe feeds one execution. It returns the completed previous taker, if any.
func (t *TakerTimeline) Observe(e domain.Execution) (domain.Execution, bool) {
	if t.has && continues(e.Consecutive) && e.Side == t.pending.Side {
		t.accumulated = t.accumulated.Add(e.Size)
		return domain.Execution{}, false
	}

	prev, ok := t.Flush()
	t.pending = e
	t.accumulated = e.Size
	t.has = true
	return prev, ok
}

// Flush emits the taker in progress.
func (t *TakerTimeline) Flush() (domain.Execution, bool) {
	if !t.has {
		return domain.Execution{}, false
	}
	out := t.pending
	out.CumulativeSize = t.accumulated
	t.has = false
	t.accumulated = decimal.Zero
	return out, true
}

func continues(consecutive int) bool {
	return consecutive == domain.ConsecutiveSameBuyer ||
		consecutive == domain.ConsecutiveSameSeller ||
		consecutive == domain.ConsecutiveSameBoth
}
