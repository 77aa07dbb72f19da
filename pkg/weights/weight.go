package weights

import (
	"sort"
	"strings"
)

// Factor identifies one component of a node or edge weight.
type Factor int

const (
	// Sensitive marks functions that are annotated or already secure.
	Sensitive Factor = iota
	// SensitiveRelated marks functions reached from sensitive data; the
	// coefficient decreases with the boundary-hop level.
	SensitiveRelated
	// Size is the instruction count of a function.
	Size
	// CallNum is the number of calls on an edge; loop calls count LoopCost.
	CallNum
	// ArgNum is the callee parameter count.
	ArgNum
	// ArgComplexity is the summed type complexity of the callee parameters.
	ArgComplexity
	// RetComplexity is the type complexity of the callee result.
	RetComplexity
	// NonCallUse flags an edge whose sink address escapes at the source.
	NonCallUse
)

var factorNames = map[Factor]string{
	Sensitive:        "sensitive",
	SensitiveRelated: "sensitive_related",
	Size:             "size",
	CallNum:          "call_num",
	ArgNum:           "arg_num",
	ArgComplexity:    "arg_complexity",
	RetComplexity:    "ret_complexity",
	NonCallUse:       "noncall_use",
}

func (f Factor) String() string {
	if name, ok := factorNames[f]; ok {
		return name
	}
	return "unknown"
}

// FactorValue is a factor's value together with its coefficient.
type FactorValue struct {
	Value Double
	Coef  Double
}

// Weighted returns Coef * Value with saturating semantics.
func (fv FactorValue) Weighted() Double {
	return Mult(fv.Coef, fv.Value)
}

// Weight is a composite record keyed by factor. The zero value is an empty
// weight ready to use.
type Weight struct {
	factors map[Factor]FactorValue
}

// AddFactor sets factor f to value with coefficient 1.
func (w *Weight) AddFactor(f Factor, value Double) {
	w.SetFactor(f, value, NewDouble(1))
}

// SetFactor sets factor f to value with the given coefficient, replacing any
// previous entry.
func (w *Weight) SetFactor(f Factor, value, coef Double) {
	if w.factors == nil {
		w.factors = make(map[Factor]FactorValue)
	}
	w.factors[f] = FactorValue{Value: value, Coef: coef}
}

// Accumulate adds value to factor f (saturating), creating it if needed.
func (w *Weight) Accumulate(f Factor, value Double) {
	current, ok := w.Factor(f)
	if !ok {
		w.AddFactor(f, value)
		return
	}
	current.Value = Sum(current.Value, value)
	w.factors[f] = current
}

// HasFactor reports whether factor f is present.
func (w *Weight) HasFactor(f Factor) bool {
	_, ok := w.factors[f]
	return ok
}

// Factor returns the factor entry for f.
func (w *Weight) Factor(f Factor) (FactorValue, bool) {
	fv, ok := w.factors[f]
	return fv, ok
}

// FactorValue returns the raw value of f, or 0 when absent.
func (w *Weight) FactorValue(f Factor) Double {
	return w.factors[f].Value
}

// Factors returns the present factors in a stable order.
func (w *Weight) Factors() []Factor {
	result := make([]Factor, 0, len(w.factors))
	for f := range w.factors {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Value is the saturating sum of coef*value over all factors. NonCallUse is
// a flag and does not contribute.
func (w *Weight) Value() Double {
	var total Double
	for _, f := range w.Factors() {
		if f == NonCallUse {
			continue
		}
		total = Sum(total, w.factors[f].Weighted())
	}
	return total
}

func (w *Weight) String() string {
	parts := make([]string, 0, len(w.factors))
	for _, f := range w.Factors() {
		parts = append(parts, f.String()+"="+w.factors[f].Value.String())
	}
	return strings.Join(parts, " ")
}
