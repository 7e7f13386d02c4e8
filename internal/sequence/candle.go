package sequence

import (
	"time"

	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// Candle expands an OHLCV bar into four pseudo executions spread evenly over span.
// A bullish bar walks open, low, high, close; a bearish one open, high, low, close.
// Each print carries a quarter of the volume. A zero volume yields nothing.
func (s *Sequencer) Candle(open, high, low, close, volume decimal.Decimal, mills int64, span time.Duration) []domain.Execution {
	if volume.IsZero() {
		return nil
	}

	sides := [4]domain.Side{domain.Buy, domain.Sell, domain.Buy, domain.Sell}
	prices := [4]decimal.Decimal{open, high, low, close}
	if open.LessThan(close) {
		sides = [4]domain.Side{domain.Sell, domain.Buy, domain.Sell, domain.Buy}
		prices = [4]decimal.Decimal{open, low, high, close}
	}

	quarter, _ := volume.Div(decimal.NewFromInt(4))
	step := span.Milliseconds() / 4

	out := make([]domain.Execution, 0, 4)
	for i := range prices {
		id := s.ComputeID(mills + int64(i)*step)
		out = append(out, domain.NewExecution().
			ID(id).
			Side(sides[i]).
			Size(quarter).
			CumulativeSize(quarter).
			Price(prices[i]).
			Mills(s.EpochMills(id)).
			Consecutive(domain.ConsecutivePseudoDifference).
			Build())
	}
	return out
}
