package decimal

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	sdec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"-0", "0"},
		{"10", "10"},
		{"10.00", "10"},
		{"0.1", "0.1"},
		{"-0.001", "-0.001"},
		{"+3.14", "3.14"},
		{".5", "0.5"},
		{"1200", "1200"},
		{"1.25e3", "1250"},
		{"123456789012345678901234567890", "123456789012345678901234567890"},
		{"0.000000000000000000000000001", "0.000000000000000000000000001"},
		{"-9223372036854775808", "-9223372036854775808"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := NewFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "-", "."} {
		_, err := NewFromString(in)
		assert.Error(t, err, in)
	}
}

func TestEqualityAcrossRepresentations(t *testing.T) {
	fixed := NewFromInt(10)
	wide := NewFromDecimal(sdec.RequireFromString("10.00"))
	assert.True(t, fixed.Equal(wide))
	assert.True(t, wide.IsCompact(), "10.00 fits the int64 form after canonicalization")

	big1 := NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 70), 0)
	big2 := RequireFromString("1180591620717411303424")
	assert.False(t, big1.IsCompact())
	assert.True(t, big1.Equal(big2))
	assert.Equal(t, 0, big1.Cmp(big2))
	assert.Equal(t, 1, big1.Cmp(NewFromInt(math.MaxInt64)))
}

func TestArithmetic(t *testing.T) {
	d := RequireFromString

	assert.Equal(t, "0.3", d("0.1").Add(d("0.2")).String())
	assert.Equal(t, "-0.1", d("0.1").Sub(d("0.2")).String())
	assert.Equal(t, "0.02", d("0.1").Mul(d("0.2")).String())
	assert.Equal(t, "12", d("1.2").Mul(Ten).String())
	assert.Equal(t, "1.5", d("10").Sub(d("8.5")).String())

	q, err := d("110").Div(d("8"))
	require.NoError(t, err)
	assert.Equal(t, "13.75", q.String())

	q, err = d("1").Div(d("3"))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", q.String())

	q, err = d("2").Div(d("3"))
	require.NoError(t, err)
	assert.Equal(t, "0.666666666666666667", q.String())

	r, err := d("7.5").Mod(d("2"))
	require.NoError(t, err)
	assert.Equal(t, "1.5", r.String())

	r, err = d("-7").Mod(d("3"))
	require.NoError(t, err)
	assert.Equal(t, "-1", r.String())

	assert.Equal(t, "5", d("-5").Abs().String())
	assert.Equal(t, "-5", d("5").Neg().String())
}

func TestDivisionByZero(t *testing.T) {
	_, err := One.Div(Zero)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = One.Mod(Zero)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = Zero.Pow(-1)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestPowAndSqrt(t *testing.T) {
	p, err := RequireFromString("1.5").Pow(2)
	require.NoError(t, err)
	assert.Equal(t, "2.25", p.String())

	p, err = Two.Pow(-2)
	require.NoError(t, err)
	assert.Equal(t, "0.25", p.String())

	p, err = Ten.Pow(30)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000000000", p.String())

	p, err = RequireFromString("7").Pow(0)
	require.NoError(t, err)
	assert.True(t, p.Equal(One))

	s, err := RequireFromString("2.25").Sqrt()
	require.NoError(t, err)
	assert.Equal(t, "1.5", s.String())

	s, err = Two.Sqrt()
	require.NoError(t, err)
	assert.Equal(t, "1.414213562373095048", s.String())

	_, err = RequireFromString("-4").Sqrt()
	assert.ErrorIs(t, err, ErrNegativeSqrt)
}

func TestOverflowFallsBack(t *testing.T) {
	max := NewFromInt(math.MaxInt64)

	sum := max.Add(One)
	assert.False(t, sum.IsCompact())
	assert.Equal(t, "9223372036854775808", sum.String())

	back := sum.Sub(One)
	assert.True(t, back.IsCompact(), "result returns to int64 form once it fits")
	assert.True(t, back.Equal(max))

	prod := max.Mul(max)
	assert.Equal(t, "85070591730234615847396907784232501249", prod.String())

	neg := NewFromInt(math.MinInt64).Neg()
	assert.Equal(t, "9223372036854775808", neg.String())

	aligned := RequireFromString("0.000000000000000001").Add(NewFromInt(100))
	assert.Equal(t, "100.000000000000000001", aligned.String())
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		mode   RoundingMode
		want   string
	}{
		{"1.25", 1, HalfUp, "1.3"},
		{"-1.25", 1, HalfUp, "-1.3"},
		{"1.25", 1, HalfEven, "1.2"},
		{"1.35", 1, HalfEven, "1.4"},
		{"1.29", 1, Down, "1.2"},
		{"-1.29", 1, Down, "-1.2"},
		{"1.21", 1, Up, "1.3"},
		{"-1.21", 1, Floor, "-1.3"},
		{"1.21", 1, Floor, "1.2"},
		{"1.21", 1, Ceiling, "1.3"},
		{"-1.29", 1, Ceiling, "-1.2"},
		{"1.2", 3, HalfUp, "1.2"},
		{"1234", -2, HalfUp, "1200"},
		{"1250", -2, HalfUp, "1300"},
		{"0.0000000000000000000000005", 0, HalfUp, "0"},
		{"0.0000000000000000000000005", 0, Up, "1"},
		{"123456789012345678901234.56", 1, Down, "123456789012345678901234.5"},
	}

	for _, tt := range tests {
		t.Run(tt.in+"/"+tt.mode.String(), func(t *testing.T) {
			got := RequireFromString(tt.in).Round(tt.places, tt.mode)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseRoundingMode(t *testing.T) {
	m, err := ParseRoundingMode("DOWN")
	require.NoError(t, err)
	assert.Equal(t, Down, m)

	_, err = ParseRoundingMode("SIDEWAYS")
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	d := RequireFromString("-12.75")
	assert.Equal(t, int64(-12), d.Int64())
	assert.InDelta(t, -12.75, d.Float64(), 1e-12)
	assert.Equal(t, float32(-12.75), d.Float32())
	assert.Equal(t, int32(2), d.Scale())
	assert.Equal(t, int32(0), RequireFromString("1200").Scale())
	assert.Equal(t, int64(1200), RequireFromString("1200").Int64())
	assert.Equal(t, "0.1", NewFromFloat(0.1).String())
	assert.Equal(t, "2.5", NewFromFloat32(2.5).String())
	assert.Equal(t, "12.3", New(123, 1).String())
}

func TestMinMaxSum(t *testing.T) {
	a, b, c := NewFromInt(3), NewFromInt(-1), RequireFromString("2.5")
	assert.True(t, Min(a, b, c).Equal(b))
	assert.True(t, Max(a, b, c).Equal(a))
	assert.Equal(t, "4.5", Sum(a, b, c).String())
}

func TestEncoding(t *testing.T) {
	type payload struct {
		Price Decimal `json:"price" yaml:"price"`
	}

	data, err := json.Marshal(payload{Price: RequireFromString("101.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":"101.5"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"price":42.25}`), &p))
	assert.Equal(t, "42.25", p.Price.String())

	require.NoError(t, yaml.Unmarshal([]byte("price: 0.001\n"), &p))
	assert.Equal(t, "0.001", p.Price.String())

	var scanned Decimal
	require.NoError(t, scanned.Scan([]byte("7.125")))
	assert.Equal(t, "7.125", scanned.String())
	v, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, "7.125", v)
	assert.Error(t, scanned.Scan(struct{}{}))
}
