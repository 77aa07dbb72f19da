package partition

import (
	"sort"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

// Annotation marks a function, some of its arguments, or its result as
// sensitive. It is immutable once created.
type Annotation struct {
	function program.FuncID
	label    string
	args     []int
	ret      bool
}

// NewAnnotation builds an annotation. Argument positions are copied, sorted
// and deduplicated.
func NewAnnotation(fn program.FuncID, label string, args []int, ret bool) Annotation {
	return Annotation{
		function: fn,
		label:    label,
		args:     normalizeArgs(args),
		ret:      ret,
	}
}

func normalizeArgs(args []int) []int {
	if len(args) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(args))
	result := make([]int, 0, len(args))
	for _, a := range args {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		result = append(result, a)
	}
	sort.Ints(result)
	return result
}

// Function returns the annotated function.
func (a Annotation) Function() program.FuncID { return a.function }

// Label returns the annotation label, e.g. "sensitive".
func (a Annotation) Label() string { return a.label }

// Arguments returns a copy of the annotated argument positions.
func (a Annotation) Arguments() []int {
	if len(a.args) == 0 {
		return nil
	}
	return append([]int(nil), a.args...)
}

// HasArguments reports whether any argument is annotated.
func (a Annotation) HasArguments() bool { return len(a.args) > 0 }

// ReturnSensitive reports whether the result is annotated.
func (a Annotation) ReturnSensitive() bool { return a.ret }

// Equal compares annotations by function identity.
func (a Annotation) Equal(o Annotation) bool {
	return a.function == o.function
}

// DedupeAnnotations merges annotations on the same function. The first label
// wins, argument sets are unioned and return flags OR-ed. First-seen order is
// kept.
func DedupeAnnotations(annotations []Annotation) []Annotation {
	index := make(map[program.FuncID]int)
	var result []Annotation
	for _, a := range annotations {
		i, ok := index[a.function]
		if !ok {
			index[a.function] = len(result)
			result = append(result, a)
			continue
		}
		merged := result[i]
		result[i] = NewAnnotation(merged.function, merged.label, append(merged.Arguments(), a.args...), merged.ret || a.ret)
	}
	return result
}
