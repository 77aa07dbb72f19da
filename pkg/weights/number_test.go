package weights

import (
	"math"
	"testing"
)

func TestSumSaturates(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Integer
		expected Integer
	}{
		{"finite", NewInteger(2), NewInteger(3), NewInteger(5)},
		{"inf plus finite", PosInfinity[int64](), NewInteger(7), PosInfinity[int64]()},
		{"finite plus neg inf", NewInteger(7), NegInfinity[int64](), NegInfinity[int64]()},
		{"inf plus neg inf", PosInfinity[int64](), NegInfinity[int64](), NewInteger(0)},
		{"neg inf plus inf", NegInfinity[int64](), PosInfinity[int64](), NewInteger(0)},
		{"positive overflow", NewInteger(math.MaxInt64 - 1), NewInteger(10), PosInfinity[int64]()},
		{"negative overflow", NewInteger(math.MinInt64 + 1), NewInteger(-10), NegInfinity[int64]()},
		{"mixed signs never overflow", NewInteger(math.MaxInt64 - 1), NewInteger(-5), NewInteger(math.MaxInt64 - 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sum(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestMultSaturates(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Integer
		expected Integer
	}{
		{"finite", NewInteger(6), NewInteger(7), NewInteger(42)},
		{"zero times inf", NewInteger(0), PosInfinity[int64](), NewInteger(0)},
		{"neg inf times zero", NegInfinity[int64](), NewInteger(0), NewInteger(0)},
		{"inf times negative", PosInfinity[int64](), NewInteger(-2), NegInfinity[int64]()},
		{"neg inf times neg inf", NegInfinity[int64](), NegInfinity[int64](), PosInfinity[int64]()},
		{"positive overflow", NewInteger(math.MaxInt64 / 2), NewInteger(3), PosInfinity[int64]()},
		{"negative overflow", NewInteger(math.MaxInt64 / 2), NewInteger(-3), NegInfinity[int64]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mult(tt.a, tt.b)
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDoubleSaturates(t *testing.T) {
	inf := PosInfinity[float64]()

	if got := Sum(inf, NewDouble(1.5)); !got.IsPosInfinity() {
		t.Errorf("Expected inf, got %s", got)
	}
	if got := Sum(inf, NegInfinity[float64]()); !got.IsZero() {
		t.Errorf("Expected 0, got %s", got)
	}
	if got := Mult(NewDouble(0), inf); !got.IsZero() {
		t.Errorf("Expected 0, got %s", got)
	}
	if got := Sum(NewDouble(math.MaxFloat64), NewDouble(math.MaxFloat64)); !got.IsPosInfinity() {
		t.Errorf("Expected overflow to inf, got %s", got)
	}
	if got := Mult(NewDouble(math.MaxFloat64), NewDouble(-2)); !got.IsNegInfinity() {
		t.Errorf("Expected overflow to -inf, got %s", got)
	}
	if got := NewDouble(math.NaN()); !got.IsZero() {
		t.Errorf("Expected NaN to normalize to 0, got %s", got)
	}
}

func TestNumberHelpers(t *testing.T) {
	if got := NewInteger(5).Sub(NewInteger(8)); got.Value() != -3 {
		t.Errorf("Expected -3, got %d", got.Value())
	}
	if got := PosInfinity[int64]().Neg(); !got.IsNegInfinity() {
		t.Errorf("Expected -inf, got %s", got)
	}
	if !NewInteger(1).Less(PosInfinity[int64]()) {
		t.Error("Expected finite value to be less than inf")
	}
	if got := PosInfinity[float64]().Capped(1e6); got != 1e6 {
		t.Errorf("Expected capped value 1e6, got %v", got)
	}
	if got := NewDouble(-5e9).Capped(1e6); got != -1e6 {
		t.Errorf("Expected capped value -1e6, got %v", got)
	}
	if got := PosInfinity[int64]().Float64(); !math.IsInf(got, 1) {
		t.Errorf("Expected +Inf, got %v", got)
	}
	if got := NegInfinity[int64]().String(); got != "-inf" {
		t.Errorf("Expected -inf, got %q", got)
	}
	if got := NewDouble(0.25).String(); got != "0.25" {
		t.Errorf("Expected 0.25, got %q", got)
	}
}
