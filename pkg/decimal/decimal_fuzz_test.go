package decimal

import (
	"math/big"
	"testing"

	sdec "github.com/shopspring/decimal"
)

// FuzzRoundTrip checks that String(parse(s)) denotes the same value as s.
func FuzzRoundTrip(f *testing.F) {
	f.Add("0")
	f.Add("1.23")
	f.Add("-1.2300")
	f.Add("0.000001")
	f.Add("9999999.999999")
	f.Add("92233720368547758070")
	f.Add("1e-30")

	f.Fuzz(func(t *testing.T, s string) {
		d, err := NewFromString(s)
		if err != nil || abs64(int64(d.BigDecimal().Exponent())) > 400 {
			return
		}
		again, err := NewFromString(d.String())
		if err != nil {
			t.Fatalf("String() of %q produced unparsable %q: %v", s, d.String(), err)
		}
		if !again.Equal(d) {
			t.Fatalf("round trip of %q: got %s, want %s", s, again, d)
		}
		ref, err := sdec.NewFromString(s)
		if err == nil && !ref.Equal(d.BigDecimal()) {
			t.Fatalf("parse of %q: got %s, reference %s", s, d, ref)
		}
	})
}

// FuzzArithmeticMatchesBig compares every int64 operand pair against big.Int arithmetic.
func FuzzArithmeticMatchesBig(f *testing.F) {
	f.Add(int64(0), int32(0), int64(0), int32(0))
	f.Add(int64(9223372036854775807), int32(0), int64(1), int32(0))
	f.Add(int64(-9223372036854775808), int32(2), int64(-1), int32(0))
	f.Add(int64(123456789), int32(4), int64(987654321), int32(9))
	f.Add(int64(3037000500), int32(0), int64(3037000500), int32(0))

	f.Fuzz(func(t *testing.T, am int64, as int32, bm int64, bs int32) {
		as, bs = as%20, bs%20
		a, b := New(am, as), New(bm, bs)

		ra, rb := ratFrom(am, as), ratFrom(bm, bs)

		check := func(op string, got Decimal, want *big.Rat) {
			if ratOf(got).Cmp(want) != 0 {
				t.Fatalf("%s(%s, %s) = %s, want %s", op, a, b, got, want.FloatString(40))
			}
		}
		check("Add", a.Add(b), new(big.Rat).Add(ra, rb))
		check("Sub", a.Sub(b), new(big.Rat).Sub(ra, rb))
		check("Mul", a.Mul(b), new(big.Rat).Mul(ra, rb))

		if cmp := a.Cmp(b); cmp != ra.Cmp(rb) {
			t.Fatalf("Cmp(%s, %s) = %d, want %d", a, b, cmp, ra.Cmp(rb))
		}
	})
}

// ratFrom returns m * 10^-s as an exact rational.
func ratFrom(m int64, s int32) *big.Rat {
	return scaledRat(big.NewInt(m), -int64(s))
}

func ratOf(d Decimal) *big.Rat {
	w := d.BigDecimal()
	return scaledRat(w.Coefficient(), int64(w.Exponent()))
}

func scaledRat(coef *big.Int, exp int64) *big.Rat {
	r := new(big.Rat).SetInt(coef)
	p := new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(abs64(exp)), nil))
	if exp >= 0 {
		return r.Mul(r, p)
	}
	return r.Quo(r, p)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
