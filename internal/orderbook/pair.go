package orderbook

import (
	"github.com/teletha/cointoss-sub007/internal/domain"
	"github.com/teletha/cointoss-sub007/pkg/decimal"
)

// Pair holds both sides of one market's book.
type Pair struct {
	Asks *Ladder
	Bids *Ladder

	tick  decimal.Decimal
	width decimal.Decimal
}

// NewPair builds empty ladders using the market tick as native granularity.
func NewPair(setting domain.MarketSetting) (*Pair, error) {
	if err := setting.Validate(); err != nil {
		return nil, err
	}
	return &Pair{
		Asks:  NewLadder(domain.Sell, setting),
		Bids:  NewLadder(domain.Buy, setting),
		tick:  setting.TickSize,
		width: setting.TickSize,
	}, nil
}

// By returns the ladder holding orders of side: Buy selects the bids. An order trades
// against By(side.Inverse()).
func (p *Pair) By(side domain.Side) *Ladder {
	if side == domain.Buy {
		return p.Bids
	}
	return p.Asks
}

// Apply routes a feed message to both ladders.
func (p *Pair) Apply(diff domain.BookDiff) {
	if diff.Full {
		p.Asks.Snapshot(diff.Asks)
		p.Bids.Snapshot(diff.Bids)
		return
	}
	p.Asks.Update(diff.Asks)
	p.Bids.Update(diff.Bids)
}

// Spread returns best ask minus best bid, or zero while either side is empty.
func (p *Pair) Spread() decimal.Decimal {
	ask, ok := p.Asks.BestPrice()
	if !ok {
		return decimal.Zero
	}
	bid, ok := p.Bids.BestPrice()
	if !ok {
		return decimal.Zero
	}
	return ask.Sub(bid)
}

// GroupBy applies a grouping width to both sides. Widths below the tick are clamped to it.
func (p *Pair) GroupBy(width decimal.Decimal) error {
	if width.LessThan(p.tick) {
		width = p.tick
	}
	if _, err := p.Asks.GroupBy(width); err != nil {
		return err
	}
	if _, err := p.Bids.GroupBy(width); err != nil {
		return err
	}
	p.width = width
	return nil
}

// Width returns the grouping width shared by both sides.
func (p *Pair) Width() decimal.Decimal { return p.width }

// BestPriceWithThreshold queries the ladder of side. A zero threshold returns start as is.
func (p *Pair) BestPriceWithThreshold(side domain.Side, start, threshold, offset decimal.Decimal) (decimal.Decimal, bool) {
	if threshold.IsZero() {
		return start, true
	}
	return p.By(side).BestPriceWithThreshold(start, threshold, offset)
}

// LargestOrderInRange returns the larger of the two sides' answers; bids win ties.
func (p *Pair) LargestOrderInRange(low, high decimal.Decimal) Level {
	bid := p.Bids.LargestOrderInRange(low, high)
	ask := p.Asks.LargestOrderInRange(low, high)
	if bid.Size < ask.Size {
		return ask
	}
	return bid
}

// PredictExecutionPrice returns the average price a taker order of side would get.
func (p *Pair) PredictExecutionPrice(side domain.Side, size decimal.Decimal) decimal.Decimal {
	return p.By(side.Inverse()).PredictExecutionPrice(size)
}

// Trim drops levels on both sides that a trade at price has printed through.
func (p *Pair) Trim(price decimal.Decimal) {
	f := price.Float64()
	p.Asks.Trim(f)
	p.Bids.Trim(f)
}
