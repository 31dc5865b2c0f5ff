package solver

import "math"

// Saturating cost arithmetic. All blended coefficients and callback results
// clamp at the maximum representable cost instead of overflowing, so an
// "infinite" cost stays infinite through any further addition or scaling.

func satAdd(a, b int64) int64 {
	if a > 0 && b > math.MaxInt64-a {
		return math.MaxInt64
	}
	if a < 0 && b < math.MinInt64-a {
		return math.MinInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	c := a * b
	if c/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return c
}

// satDiv divides, mapping a division of Infinity to Infinity so an unbounded
// cost split across shifts stays unbounded.
func satDiv(a, b int64) int64 {
	if b == 0 {
		return math.MaxInt64
	}
	if a == math.MaxInt64 {
		return math.MaxInt64
	}
	return a / b
}
