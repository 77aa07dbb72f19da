package frontend

import (
	"go/types"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

// maxTypeDepth bounds struct and array nesting; deeper values are costed as
// a single scalar.
const maxTypeDepth = 4

// typeConverter maps go/types types onto program types. Only the shape the
// cost model needs survives. Named types are cached and recursive types are
// cut at the recursion point.
type typeConverter struct {
	cache    map[types.Type]*program.Type
	visiting map[*types.Named]bool
}

func newTypeConverter() *typeConverter {
	return &typeConverter{
		cache:    make(map[types.Type]*program.Type),
		visiting: make(map[*types.Named]bool),
	}
}

func (c *typeConverter) convert(t types.Type) *program.Type {
	return c.convertDepth(t, 0)
}

func (c *typeConverter) convertDepth(t types.Type, depth int) *program.Type {
	if t == nil {
		return program.Void
	}
	if cached, ok := c.cache[t]; ok {
		return cached
	}
	if depth > maxTypeDepth {
		return program.Scalar(t.String())
	}

	switch t := t.(type) {
	case *types.Named:
		if c.visiting[t] {
			return program.Scalar(t.Obj().Name())
		}
		c.visiting[t] = true
		result := c.convertDepth(t.Underlying(), depth)
		delete(c.visiting, t)
		c.cache[t] = result
		return result
	case *types.Alias:
		return c.convertDepth(types.Unalias(t), depth)
	case *types.Basic:
		return basicType(t)
	case *types.Pointer:
		return program.PointerTo(c.convertDepth(t.Elem(), depth+1))
	case *types.Signature:
		return c.signatureType(t, depth)
	case *types.Struct:
		fields := make([]*program.Type, t.NumFields())
		for i := range fields {
			fields[i] = c.convertDepth(t.Field(i).Type(), depth+1)
		}
		return program.StructOf(fields...)
	case *types.Array:
		return program.ArrayOf(t.Len(), c.convertDepth(t.Elem(), depth+1))
	case *types.Slice:
		// data pointer, length and capacity
		return program.StructOf(program.PointerTo(c.convertDepth(t.Elem(), depth+1)), program.Int, program.Int)
	case *types.Tuple:
		return c.tupleType(t, depth)
	case *types.Map, *types.Chan, *types.Interface:
		return program.PointerTo(program.Scalar(t.String()))
	}
	return program.Scalar(t.String())
}

func basicType(t *types.Basic) *program.Type {
	switch t.Kind() {
	case types.Int, types.UntypedInt:
		return program.Int
	case types.Bool, types.UntypedBool:
		return program.Bool
	case types.Float64, types.UntypedFloat:
		return program.Float
	case types.String, types.UntypedString:
		return program.String
	case types.UnsafePointer:
		return program.PointerTo(program.Void)
	case types.UntypedNil:
		return program.PointerTo(program.Void)
	}
	return program.Scalar(t.Name())
}

// tupleType converts a result list: nothing is void, one value is itself and
// several values form a struct.
func (c *typeConverter) tupleType(t *types.Tuple, depth int) *program.Type {
	switch t.Len() {
	case 0:
		return program.Void
	case 1:
		return c.convertDepth(t.At(0).Type(), depth)
	}
	fields := make([]*program.Type, t.Len())
	for i := range fields {
		fields[i] = c.convertDepth(t.At(i).Type(), depth+1)
	}
	return program.StructOf(fields...)
}

func (c *typeConverter) signatureType(sig *types.Signature, depth int) *program.Type {
	params := c.paramTypes(sig, depth)
	return program.FuncOf(c.tupleType(sig.Results(), depth+1), params...)
}

// paramTypes lists the parameter types of sig, receiver first.
func (c *typeConverter) paramTypes(sig *types.Signature, depth int) []*program.Type {
	var params []*program.Type
	if recv := sig.Recv(); recv != nil {
		params = append(params, c.convertDepth(recv.Type(), depth+1))
	}
	for i := 0; i < sig.Params().Len(); i++ {
		params = append(params, c.convertDepth(sig.Params().At(i).Type(), depth+1))
	}
	return params
}

// signature returns the program signature of a call.
func (c *typeConverter) signature(sig *types.Signature) *program.Signature {
	return c.signatureType(sig, 0).Signature
}
