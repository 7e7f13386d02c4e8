// Package decimal implements the exact decimal number used for every price, size and fee.
//
// A Decimal is stored as an int64 mantissa with a base-10 scale while the value fits, and
// falls back to an arbitrary-precision shopspring decimal otherwise. Values are kept in
// canonical form (no trailing zeros in the mantissa), so two Decimals with the same
// mathematical value compare equal regardless of how they were produced.
package decimal

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	sdec "github.com/shopspring/decimal"

	"github.com/teletha/cointoss-sub007/pkg/safe"
)

// DivisionPrecision is the number of fractional digits kept by non-terminating quotients
// and irrational square roots.
const DivisionPrecision = 18

var (
	// ErrDivisionByZero is returned by Div, Mod and Pow when the divisor is zero.
	ErrDivisionByZero = errors.New("decimal: division by zero")

	// ErrNegativeSqrt is returned by Sqrt for negative values.
	ErrNegativeSqrt = errors.New("decimal: square root of negative number")
)

var (
	Zero    = Decimal{}
	One     = Decimal{m: 1}
	Two     = Decimal{m: 2}
	Ten     = Decimal{m: 1, s: -1}
	Hundred = Decimal{m: 1, s: -2}
)

// Decimal is an immutable signed decimal number. The zero value is 0.
type Decimal struct {
	m    int64 // mantissa, value = m * 10^-s
	s    int32
	wide bool
	w    sdec.Decimal // valid only when wide
}

// New returns mantissa * 10^-scale.
func New(mantissa int64, scale int32) Decimal {
	return compact(mantissa, scale)
}

// NewFromInt converts an integer.
func NewFromInt(v int64) Decimal {
	return compact(v, 0)
}

// NewFromFloat converts a float64 using its shortest decimal representation.
// It panics on NaN or infinity.
func NewFromFloat(f float64) Decimal {
	return fromWide(sdec.NewFromFloat(f))
}

// NewFromFloat32 converts a float32 using its shortest decimal representation.
func NewFromFloat32(f float32) Decimal {
	return fromWide(sdec.NewFromFloat32(f))
}

// NewFromBigInt returns v * 10^exp.
func NewFromBigInt(v *big.Int, exp int32) Decimal {
	return fromWide(sdec.NewFromBigInt(v, exp))
}

// NewFromDecimal converts a shopspring decimal.
func NewFromDecimal(v sdec.Decimal) Decimal {
	return fromWide(v)
}

// NewFromString parses plain ("-12.5") or exponent ("1.25e3") notation.
func NewFromString(s string) (Decimal, error) {
	if d, ok := parseFixedPoint(s); ok {
		return d, nil
	}
	w, err := sdec.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("decimal: can't parse %q: %w", s, err)
	}
	return fromWide(w), nil
}

// RequireFromString is NewFromString for literals known to be valid. It panics otherwise.
func RequireFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// parseFixedPoint parses [-+]digits[.digits] without floats when at most 18 digits are
// present. Anything else is left to the arbitrary-precision parser.
func parseFixedPoint(s string) (Decimal, bool) {
	if s == "" {
		return Decimal{}, false
	}

	i := 0
	neg := false
	switch s[0] {
	case '-':
		neg = true
		i++
	case '+':
		i++
	}

	var m int64
	var scale int32
	digits := 0
	dot := false
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' && !dot:
			dot = true
		case c >= '0' && c <= '9':
			digits++
			if digits > safe.MaxPow10 {
				return Decimal{}, false
			}
			m = m*10 + int64(c-'0')
			if dot {
				scale++
			}
		default:
			return Decimal{}, false
		}
	}
	if digits == 0 {
		return Decimal{}, false
	}
	if neg {
		m = -m
	}
	return compact(m, scale), true
}

// compact strips trailing zeros from the mantissa.
func compact(m int64, s int32) Decimal {
	if m == 0 {
		return Decimal{}
	}
	for m%10 == 0 {
		m /= 10
		s--
	}
	return Decimal{m: m, s: s}
}

// fromWide canonicalizes an arbitrary-precision value, returning to the int64 form when
// the stripped coefficient fits.
func fromWide(w sdec.Decimal) Decimal {
	coef := w.Coefficient()
	if coef.Sign() == 0 {
		return Decimal{}
	}
	exp := w.Exponent()

	ten := big.NewInt(10)
	q, r := new(big.Int), new(big.Int)
	for {
		q.QuoRem(coef, ten, r)
		if r.Sign() != 0 {
			break
		}
		coef, q = q, coef
		exp++
	}

	if coef.IsInt64() {
		return Decimal{m: coef.Int64(), s: -exp}
	}
	return Decimal{wide: true, w: sdec.NewFromBigInt(coef, exp)}
}

// toWide returns the arbitrary-precision form of d.
func (d Decimal) toWide() sdec.Decimal {
	if d.wide {
		return d.w
	}
	return sdec.New(d.m, -d.s)
}

// IsCompact reports whether d is held in the int64 form.
func (d Decimal) IsCompact() bool {
	return !d.wide
}

// BigDecimal returns d as a shopspring decimal.
func (d Decimal) BigDecimal() sdec.Decimal {
	return d.toWide()
}

// Scale returns the number of significant fractional digits.
func (d Decimal) Scale() int32 {
	s := d.s
	if d.wide {
		s = -d.w.Exponent()
	}
	if s < 0 {
		return 0
	}
	return s
}

// Sign returns -1, 0 or 1.
func (d Decimal) Sign() int {
	if d.wide {
		return d.w.Sign()
	}
	switch {
	case d.m < 0:
		return -1
	case d.m > 0:
		return 1
	}
	return 0
}

func (d Decimal) IsZero() bool     { return d.Sign() == 0 }
func (d Decimal) IsPositive() bool { return d.Sign() > 0 }
func (d Decimal) IsNegative() bool { return d.Sign() < 0 }

// String renders d in plain notation without insignificant trailing zeros.
func (d Decimal) String() string {
	if d.wide {
		return d.w.String()
	}
	if d.m == 0 {
		return "0"
	}
	if d.s <= 0 {
		return strconv.FormatInt(d.m, 10) + strings.Repeat("0", int(-d.s))
	}

	u := uint64(d.m)
	if d.m < 0 {
		u = uint64(-d.m)
	}
	digits := strconv.FormatUint(u, 10)
	scale := int(d.s)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}

	var b strings.Builder
	if d.m < 0 {
		b.WriteByte('-')
	}
	b.WriteString(digits[:len(digits)-scale])
	b.WriteByte('.')
	b.WriteString(digits[len(digits)-scale:])
	return b.String()
}

// Float64 returns the nearest float64.
func (d Decimal) Float64() float64 {
	if !d.wide && d.s == 0 {
		return float64(d.m)
	}
	f, _ := strconv.ParseFloat(d.String(), 64)
	return f
}

// Float32 returns the nearest float32.
func (d Decimal) Float32() float32 {
	f, _ := strconv.ParseFloat(d.String(), 32)
	return float32(f)
}

// Int64 returns the integer part of d, truncated toward zero.
func (d Decimal) Int64() int64 {
	if d.wide {
		return d.w.IntPart()
	}
	if d.s <= 0 {
		v, ok := safe.Scale(d.m, int(-d.s))
		if !ok {
			return d.toWide().IntPart()
		}
		return v
	}
	p, ok := safe.Pow10(int(d.s))
	if !ok {
		return 0
	}
	return d.m / p
}
