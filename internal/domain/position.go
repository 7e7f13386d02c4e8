package domain

import "github.com/teletha/cointoss-sub007/pkg/decimal"

// Position is the net exposure built from fills.
type Position struct {
	Symbol        string
	Size          decimal.Decimal // Positive for Long, Negative for Short.
	AvgEntryPrice decimal.Decimal // Weighted Average Entry Price.
	RealizedPnL   decimal.Decimal
}

// IsLong checks if the position is Long.
func (p *Position) IsLong() bool {
	return p.Size.IsPositive()
}

// IsShort checks if the position is Short.
func (p *Position) IsShort() bool {
	return p.Size.IsNegative()
}

// Apply books a fill. Fills in the position's direction average into the entry price;
// opposing fills realize PnL against it and may flip the position.
func (p *Position) Apply(side Side, size, price decimal.Decimal) {
	signed := size
	if side == Sell {
		signed = size.Neg()
	}

	if p.Size.IsZero() || p.Size.Sign() == signed.Sign() {
		total := p.Size.Add(signed)
		notional := p.AvgEntryPrice.Mul(p.Size.Abs()).Add(price.Mul(size))
		avg, err := notional.Div(total.Abs())
		if err == nil {
			p.AvgEntryPrice = avg
		}
		p.Size = total
		return
	}

	closing := decimal.Min(size, p.Size.Abs())
	pnl := price.Sub(p.AvgEntryPrice).Mul(closing)
	if p.IsShort() {
		pnl = pnl.Neg()
	}
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.Size = p.Size.Add(signed)

	switch {
	case p.Size.IsZero():
		p.AvgEntryPrice = decimal.Zero
	case p.Size.Sign() == signed.Sign():
		// flipped; the remainder opened at this fill's price
		p.AvgEntryPrice = price
	}
}

// UnrealizedPnL marks the open size against mark.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	return mark.Sub(p.AvgEntryPrice).Mul(p.Size)
}
