package program

import (
	"fmt"
	"strings"
)

// TypeKind classifies a Type for the cost model and for pointer checks.
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindScalar
	KindPointer
	KindFunction
	KindStruct
	KindArray
)

// Type is a structural description of a value type. Only the shape matters to
// the partitioner: complexity for edge weights, pointer-ness for argument
// annotations and signatures for callback handlers.
type Type struct {
	Kind      TypeKind
	Name      string
	Elem      *Type
	Fields    []*Type
	Len       int64
	Signature *Signature
}

// Signature is the shape of a function type.
type Signature struct {
	Params []*Type
	Result *Type
}

var (
	Void   = &Type{Kind: KindVoid, Name: "void"}
	Int    = &Type{Kind: KindScalar, Name: "int"}
	Bool   = &Type{Kind: KindScalar, Name: "bool"}
	Float  = &Type{Kind: KindScalar, Name: "float64"}
	String = &Type{Kind: KindScalar, Name: "string"}

	// Handle replaces function-pointer parameters after callback rewriting.
	Handle = &Type{Kind: KindScalar, Name: "uint64"}
)

// Scalar returns a named scalar type.
func Scalar(name string) *Type {
	return &Type{Kind: KindScalar, Name: name}
}

// PointerTo returns a pointer to elem.
func PointerTo(elem *Type) *Type {
	return &Type{Kind: KindPointer, Elem: elem}
}

// StructOf returns a struct with the given field types.
func StructOf(fields ...*Type) *Type {
	return &Type{Kind: KindStruct, Fields: fields}
}

// ArrayOf returns a fixed-length array.
func ArrayOf(n int64, elem *Type) *Type {
	return &Type{Kind: KindArray, Len: n, Elem: elem}
}

// FuncOf returns a function type with the given result and params.
func FuncOf(result *Type, params ...*Type) *Type {
	if result == nil {
		result = Void
	}
	return &Type{Kind: KindFunction, Signature: &Signature{Params: params, Result: result}}
}

// IsPointer reports whether values of t are addresses. Function values count
// since they carry a code address.
func (t *Type) IsPointer() bool {
	return t != nil && (t.Kind == KindPointer || t.Kind == KindFunction)
}

// IsFunction reports whether t is a function type.
func (t *Type) IsFunction() bool {
	return t != nil && t.Kind == KindFunction
}

// IsVoid reports whether t carries no value.
func (t *Type) IsVoid() bool {
	return t == nil || t.Kind == KindVoid
}

// Complexity is the marshalling cost of a value of type t: scalars cost 1,
// structs the sum of their fields, arrays len times the element, pointers and
// functions nothing.
func (t *Type) Complexity() int64 {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case KindScalar:
		return 1
	case KindStruct:
		var total int64
		for _, f := range t.Fields {
			total += f.Complexity()
		}
		return total
	case KindArray:
		return t.Len * t.Elem.Complexity()
	}
	return 0
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindScalar:
		return t.Name
	case KindPointer:
		return "*" + t.Elem.String()
	case KindStruct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "struct{" + strings.Join(parts, "; ") + "}"
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem.String())
	case KindFunction:
		return "func" + t.Signature.String()
	}
	return "?"
}

func (s *Signature) String() string {
	if s == nil {
		return "()"
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.String()
	}
	result := "(" + strings.Join(parts, ", ") + ")"
	if !s.Result.IsVoid() {
		result += " " + s.Result.String()
	}
	return result
}

// Key identifies a signature structurally; two signatures with the same key
// share callback handlers.
func (s *Signature) Key() string {
	return s.String()
}
