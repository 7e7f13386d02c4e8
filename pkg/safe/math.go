package safe

import (
	"math"
)

// pow10 holds every power of ten that fits in an int64.
var pow10 = [...]int64{
	1,
	10,
	100,
	1000,
	10000,
	100000,
	1000000,
	10000000,
	100000000,
	1000000000,
	10000000000,
	100000000000,
	1000000000000,
	10000000000000,
	100000000000000,
	1000000000000000,
	10000000000000000,
	100000000000000000,
	1000000000000000000,
}

// MaxPow10 is the largest n for which Pow10(n) succeeds.
const MaxPow10 = len(pow10) - 1

// Add returns a+b and false if the sum overflows.
func Add(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// Sub returns a-b and false if the difference overflows.
func Sub(a, b int64) (int64, bool) {
	if (b > 0 && a < math.MinInt64+b) || (b < 0 && a > math.MaxInt64+b) {
		return 0, false
	}
	return a - b, true
}

// Mul returns a*b and false if the product overflows.
func Mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				return 0, false
			}
		} else {
			if b < math.MinInt64/a {
				return 0, false
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				return 0, false
			}
		} else {
			if a < math.MaxInt64/b {
				return 0, false
			}
		}
	}
	return a * b, true
}

// Neg returns -a and false for MinInt64.
func Neg(a int64) (int64, bool) {
	if a == math.MinInt64 {
		return 0, false
	}
	return -a, true
}

// Pow10 returns 10^n for 0 <= n <= MaxPow10.
func Pow10(n int) (int64, bool) {
	if n < 0 || n > MaxPow10 {
		return 0, false
	}
	return pow10[n], true
}

// Scale returns a*10^n and false if the result does not fit.
func Scale(a int64, n int) (int64, bool) {
	p, ok := Pow10(n)
	if !ok {
		if a == 0 {
			return 0, true
		}
		return 0, false
	}
	return Mul(a, p)
}

// SafeAdd performs int64 addition and panics on overflow/underflow.
func SafeAdd(a, b int64) int64 {
	v, ok := Add(a, b)
	if !ok {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return v
}

// SafeSub performs int64 subtraction and panics on overflow/underflow.
func SafeSub(a, b int64) int64 {
	v, ok := Sub(a, b)
	if !ok {
		panic("CORE_SAFE_SUB_OVERFLOW")
	}
	return v
}

// SafeMul performs int64 multiplication and panics on overflow/underflow.
func SafeMul(a, b int64) int64 {
	v, ok := Mul(a, b)
	if !ok {
		panic("CORE_SAFE_MUL_OVERFLOW")
	}
	return v
}

// SafeDiv performs int64 division and panics on division by zero.
func SafeDiv(a, b int64) int64 {
	if b == 0 {
		panic("CORE_SAFE_DIV_BY_ZERO")
	}
	if a == math.MinInt64 && b == -1 {
		panic("CORE_SAFE_DIV_OVERFLOW")
	}
	return a / b
}
