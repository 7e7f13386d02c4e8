package decimal

import (
	"fmt"

	"github.com/teletha/cointoss-sub007/pkg/safe"
)

// RoundingMode selects how Round discards digits.
type RoundingMode int

const (
	HalfUp   RoundingMode = iota // nearest, ties away from zero
	HalfEven                     // nearest, ties to even
	Down                         // toward zero
	Up                           // away from zero
	Floor                        // toward negative infinity
	Ceiling                      // toward positive infinity
)

func (m RoundingMode) String() string {
	switch m {
	case HalfUp:
		return "HALF_UP"
	case HalfEven:
		return "HALF_EVEN"
	case Down:
		return "DOWN"
	case Up:
		return "UP"
	case Floor:
		return "FLOOR"
	case Ceiling:
		return "CEILING"
	default:
		return fmt.Sprintf("RoundingMode(%d)", int(m))
	}
}

// ParseRoundingMode accepts the names produced by String.
func ParseRoundingMode(s string) (RoundingMode, error) {
	for m := HalfUp; m <= Ceiling; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("decimal: unknown rounding mode %q", s)
}

// Round re-expresses d with at most places fractional digits. A negative places rounds to
// tens, hundreds and so on. Values that already fit are returned unchanged.
func (d Decimal) Round(places int32, mode RoundingMode) Decimal {
	if d.Scale() <= places && places >= 0 {
		return d
	}
	if !d.wide && d.s <= places {
		return d
	}
	if !d.wide {
		if p, ok := safe.Pow10(int(d.s) - int(places)); ok {
			return compact(roundQuotient(d.m, p, mode), places)
		}
	}

	w := d.toWide()
	switch mode {
	case HalfEven:
		w = w.RoundBank(places)
	case Down:
		w = w.RoundDown(places)
	case Up:
		w = w.RoundUp(places)
	case Floor:
		w = w.RoundFloor(places)
	case Ceiling:
		w = w.RoundCeil(places)
	default:
		w = w.Round(places)
	}
	return fromWide(w)
}

// roundQuotient divides m by p (a power of ten) applying mode to the discarded remainder.
func roundQuotient(m, p int64, mode RoundingMode) int64 {
	q, r := m/p, m%p
	if r == 0 {
		return q
	}

	sign := int64(1)
	if m < 0 {
		sign = -1
	}
	abs := r
	if abs < 0 {
		abs = -abs
	}
	// abs < p <= 10^18, so doubling cannot overflow
	twice := 2 * abs

	switch mode {
	case Down:
	case Up:
		q += sign
	case Floor:
		if m < 0 {
			q--
		}
	case Ceiling:
		if m > 0 {
			q++
		}
	case HalfEven:
		if twice > p || (twice == p && q%2 != 0) {
			q += sign
		}
	default:
		if twice >= p {
			q += sign
		}
	}
	return q
}
