package weights

import (
	"fmt"
	"math"
	"strconv"
)

// Numeric is the set of value types a Number can wrap.
type Numeric interface {
	int64 | float64
}

// Number is a saturating numeric value. The largest representable value of T
// stands for +infinity and the smallest for -infinity. Arithmetic never wraps:
// overflow promotes to the infinity of the matching sign, +inf + -inf is 0 and
// 0 * inf is 0.
type Number[T Numeric] struct {
	value T
}

// Integer and Double are the two instantiations used by the cost model.
type (
	Integer = Number[int64]
	Double  = Number[float64]
)

// NewNumber wraps a raw value. Values at the extremes of T are infinities.
func NewNumber[T Numeric](v T) Number[T] {
	return Number[T]{value: normalize(v)}
}

// NewInteger is shorthand for NewNumber[int64].
func NewInteger(v int64) Integer {
	return NewNumber(v)
}

// NewDouble is shorthand for NewNumber[float64].
func NewDouble(v float64) Double {
	return NewNumber(v)
}

// PosInfinity returns +infinity for T.
func PosInfinity[T Numeric]() Number[T] {
	return Number[T]{value: posInf[T]()}
}

// NegInfinity returns -infinity for T.
func NegInfinity[T Numeric]() Number[T] {
	return Number[T]{value: negInf[T]()}
}

func posInf[T Numeric]() T {
	var zero T
	if _, ok := any(zero).(float64); ok {
		inf := math.Inf(1)
		return T(inf)
	}
	max := int64(math.MaxInt64)
	return T(max)
}

func negInf[T Numeric]() T {
	var zero T
	if _, ok := any(zero).(float64); ok {
		inf := math.Inf(-1)
		return T(inf)
	}
	min := int64(math.MinInt64)
	return T(min)
}

func isFloat[T Numeric]() bool {
	var zero T
	_, ok := any(zero).(float64)
	return ok
}

// normalize drops NaN, which has no meaning in the cost model.
func normalize[T Numeric](v T) T {
	if isFloat[T]() {
		f := float64(v)
		if math.IsNaN(f) {
			return 0
		}
	}
	return v
}

// Value returns the raw value.
func (n Number[T]) Value() T {
	return n.value
}

// IsPosInfinity reports whether n is +infinity.
func (n Number[T]) IsPosInfinity() bool {
	return n.value == posInf[T]()
}

// IsNegInfinity reports whether n is -infinity.
func (n Number[T]) IsNegInfinity() bool {
	return n.value == negInf[T]()
}

// IsInfinite reports whether n is either infinity.
func (n Number[T]) IsInfinite() bool {
	return n.IsPosInfinity() || n.IsNegInfinity()
}

// IsZero reports whether n is 0.
func (n Number[T]) IsZero() bool {
	return n.value == 0
}

// Sign returns -1, 0 or 1.
func (n Number[T]) Sign() int {
	switch {
	case n.value > 0:
		return 1
	case n.value < 0:
		return -1
	}
	return 0
}

// Neg returns -n; the infinities swap.
func (n Number[T]) Neg() Number[T] {
	switch {
	case n.IsPosInfinity():
		return NegInfinity[T]()
	case n.IsNegInfinity():
		return PosInfinity[T]()
	}
	return Number[T]{value: -n.value}
}

// Add returns the saturating sum n + o.
func (n Number[T]) Add(o Number[T]) Number[T] {
	return Sum(n, o)
}

// Sub returns the saturating difference n - o.
func (n Number[T]) Sub(o Number[T]) Number[T] {
	return Sum(n, o.Neg())
}

// Mul returns the saturating product n * o.
func (n Number[T]) Mul(o Number[T]) Number[T] {
	return Mult(n, o)
}

// Less reports whether n < o. The infinities are the extremes of T so the
// natural ordering holds.
func (n Number[T]) Less(o Number[T]) bool {
	return n.value < o.value
}

// Cmp returns -1, 0 or 1 comparing n to o.
func (n Number[T]) Cmp(o Number[T]) int {
	switch {
	case n.value < o.value:
		return -1
	case n.value > o.value:
		return 1
	}
	return 0
}

// Float64 converts to float64, mapping the sentinels to IEEE infinities.
func (n Number[T]) Float64() float64 {
	switch {
	case n.IsPosInfinity():
		return math.Inf(1)
	case n.IsNegInfinity():
		return math.Inf(-1)
	}
	return float64(n.value)
}

// Capped converts to float64 clamped to [-limit, limit].
func (n Number[T]) Capped(limit float64) float64 {
	switch {
	case n.IsPosInfinity():
		return limit
	case n.IsNegInfinity():
		return -limit
	}
	f := float64(n.value)
	if f > limit {
		return limit
	}
	if f < -limit {
		return -limit
	}
	return f
}

func (n Number[T]) String() string {
	switch {
	case n.IsPosInfinity():
		return "inf"
	case n.IsNegInfinity():
		return "-inf"
	}
	if isFloat[T]() {
		return strconv.FormatFloat(float64(n.value), 'g', -1, 64)
	}
	return fmt.Sprintf("%d", int64(n.value))
}

// Sum is the saturating addition used throughout the cost model.
func Sum[T Numeric](a, b Number[T]) Number[T] {
	aPos, aNeg := a.IsPosInfinity(), a.IsNegInfinity()
	bPos, bNeg := b.IsPosInfinity(), b.IsNegInfinity()

	if (aPos && bNeg) || (aNeg && bPos) {
		return Number[T]{}
	}
	if aPos || bPos {
		return PosInfinity[T]()
	}
	if aNeg || bNeg {
		return NegInfinity[T]()
	}

	sum := a.value + b.value
	if isFloat[T]() {
		// IEEE overflow already lands on an infinity, which is our sentinel.
		return Number[T]{value: sum}
	}
	if a.value > 0 && b.value > 0 && (sum < a.value || sum == posInf[T]()) {
		return PosInfinity[T]()
	}
	if a.value < 0 && b.value < 0 && (sum > a.value || sum == negInf[T]()) {
		return NegInfinity[T]()
	}
	return Number[T]{value: sum}
}

// Mult is the saturating multiplication used throughout the cost model.
func Mult[T Numeric](a, b Number[T]) Number[T] {
	if a.IsZero() || b.IsZero() {
		return Number[T]{}
	}
	sign := a.Sign() * b.Sign()
	if a.IsInfinite() || b.IsInfinite() {
		if sign > 0 {
			return PosInfinity[T]()
		}
		return NegInfinity[T]()
	}

	product := a.value * b.value
	if isFloat[T]() {
		return Number[T]{value: product}
	}
	// Integer overflow: the division check fails or the product hit a sentinel.
	if product/b.value != a.value || product == posInf[T]() || product == negInf[T]() {
		if sign > 0 {
			return PosInfinity[T]()
		}
		return NegInfinity[T]()
	}
	return Number[T]{value: product}
}
