package decimal

import (
	"math"
	"math/big"

	sdec "github.com/shopspring/decimal"

	"github.com/teletha/cointoss-sub007/pkg/safe"
)

// align brings both mantissas to the larger scale. ok is false on overflow.
func align(d, o Decimal) (a, b int64, s int32, ok bool) {
	switch {
	case d.s == o.s:
		return d.m, o.m, d.s, true
	case d.s < o.s:
		a, ok = safe.Scale(d.m, int(o.s)-int(d.s))
		return a, o.m, o.s, ok
	default:
		b, ok = safe.Scale(o.m, int(d.s)-int(o.s))
		return d.m, b, d.s, ok
	}
}

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	if !d.wide && !o.wide {
		if a, b, s, ok := align(d, o); ok {
			if v, ok := safe.Add(a, b); ok {
				return compact(v, s)
			}
		}
	}
	return fromWide(d.toWide().Add(o.toWide()))
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal {
	if !d.wide && !o.wide {
		if a, b, s, ok := align(d, o); ok {
			if v, ok := safe.Sub(a, b); ok {
				return compact(v, s)
			}
		}
	}
	return fromWide(d.toWide().Sub(o.toWide()))
}

// Mul returns d * o.
func (d Decimal) Mul(o Decimal) Decimal {
	if !d.wide && !o.wide {
		s := int64(d.s) + int64(o.s)
		if s >= math.MinInt32 && s <= math.MaxInt32 {
			if v, ok := safe.Mul(d.m, o.m); ok {
				return compact(v, int32(s))
			}
		}
	}
	return fromWide(d.toWide().Mul(o.toWide()))
}

// Div returns d / o. Exact quotients are computed on the int64 path; anything else is
// rounded half-up to DivisionPrecision fractional digits.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	if d.IsZero() {
		return Decimal{}, nil
	}
	if !d.wide && !o.wide && d.m%o.m == 0 && !(d.m == math.MinInt64 && o.m == -1) {
		s := int64(d.s) - int64(o.s)
		if s >= math.MinInt32 && s <= math.MaxInt32 {
			return compact(d.m/o.m, int32(s)), nil
		}
	}
	return fromWide(d.toWide().DivRound(o.toWide(), DivisionPrecision)), nil
}

// Mod returns the truncated remainder of d / o; its sign follows d.
func (d Decimal) Mod(o Decimal) (Decimal, error) {
	if o.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	if !d.wide && !o.wide {
		if a, b, s, ok := align(d, o); ok {
			return compact(a%b, s), nil
		}
	}
	return fromWide(d.toWide().Mod(o.toWide())), nil
}

// Pow returns d^n. A negative exponent divides, so 0^-n fails with ErrDivisionByZero.
func (d Decimal) Pow(n int) (Decimal, error) {
	if n < 0 {
		if n == math.MinInt {
			return Decimal{}, ErrDivisionByZero
		}
		p, err := d.Pow(-n)
		if err != nil {
			return Decimal{}, err
		}
		return One.Div(p)
	}

	result := One
	base := d
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base)
		}
		n >>= 1
		if n > 0 {
			base = base.Mul(base)
		}
	}
	return result, nil
}

// Sqrt returns the square root of d, exact for perfect squares and truncated at
// DivisionPrecision fractional digits otherwise.
func (d Decimal) Sqrt() (Decimal, error) {
	switch d.Sign() {
	case -1:
		return Decimal{}, ErrNegativeSqrt
	case 0:
		return Decimal{}, nil
	}

	w := d.toWide()
	coef := w.Coefficient()
	exp := int(w.Exponent())

	// radicand = coef * 10^(exp+2p) must be an integer
	p := DivisionPrecision
	if need := (-exp + 1) / 2; need > p {
		p = need
	}
	shift := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp+2*p)), nil)
	root := new(big.Int).Sqrt(coef.Mul(coef, shift))
	return fromWide(sdec.NewFromBigInt(root, int32(-p))), nil
}

// Abs returns |d|.
func (d Decimal) Abs() Decimal {
	if d.Sign() >= 0 {
		return d
	}
	return d.Neg()
}

// Neg returns -d.
func (d Decimal) Neg() Decimal {
	if !d.wide {
		if v, ok := safe.Neg(d.m); ok {
			return Decimal{m: v, s: d.s}
		}
	}
	return fromWide(d.toWide().Neg())
}

// Cmp returns -1, 0 or 1 as d is less than, equal to, or greater than o.
func (d Decimal) Cmp(o Decimal) int {
	if !d.wide && !o.wide {
		if a, b, _, ok := align(d, o); ok {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	return d.toWide().Cmp(o.toWide())
}

func (d Decimal) Equal(o Decimal) bool              { return d.Cmp(o) == 0 }
func (d Decimal) LessThan(o Decimal) bool           { return d.Cmp(o) < 0 }
func (d Decimal) LessThanOrEqual(o Decimal) bool    { return d.Cmp(o) <= 0 }
func (d Decimal) GreaterThan(o Decimal) bool        { return d.Cmp(o) > 0 }
func (d Decimal) GreaterThanOrEqual(o Decimal) bool { return d.Cmp(o) >= 0 }

// Min returns the smallest argument.
func Min(first Decimal, rest ...Decimal) Decimal {
	m := first
	for _, v := range rest {
		if v.LessThan(m) {
			m = v
		}
	}
	return m
}

// Max returns the largest argument.
func Max(first Decimal, rest ...Decimal) Decimal {
	m := first
	for _, v := range rest {
		if v.GreaterThan(m) {
			m = v
		}
	}
	return m
}

// Sum adds all values.
func Sum(values ...Decimal) Decimal {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Floor rounds d down to a multiple of unit. A non-positive unit returns d unchanged.
func (d Decimal) Floor(unit Decimal) Decimal {
	if !unit.IsPositive() {
		return d
	}
	r, _ := d.Mod(unit)
	if r.IsZero() {
		return d
	}
	if r.IsNegative() {
		r = r.Add(unit)
	}
	return d.Sub(r)
}
