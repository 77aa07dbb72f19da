package partition

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

func TestPropagatorTerminatesOnCycles(t *testing.T) {
	b := program.NewBuilder()
	ptr := program.PointerTo(program.Int)
	a := b.Define("A", ptr)
	c := b.Define("B", ptr)
	b.Call(a, c, b.FormalArg(a, 0))
	b.Call(c, a, b.FormalArg(c, 0))
	b.Data(b.FormalArg(c, 0), b.FormalArg(c, 0))
	prog := b.Build()

	part := New(SecureName, prog)
	NewPropagator(nil, prog).Propagate(part, []Annotation{NewAnnotation(a, "sensitive", []int{0}, false)})

	if diff := cmp.Diff([]program.FuncID{a, c}, part.Members()); diff != "" {
		t.Errorf("Unexpected members (-want +got):\n%s", diff)
	}
	if level, ok := part.RelatedLevel(c); !ok || level != 1 {
		t.Errorf("Expected B related at level 1, got %d (%v)", level, ok)
	}
}

func TestPropagatorPreconditions(t *testing.T) {
	b := program.NewBuilder()
	f := b.Define("F", program.Int)
	h := b.Define("H", program.Int)
	noDeps := b.Define("N", program.PointerTo(program.Int))
	helper := b.Define("helper", program.PointerTo(program.Int))
	decl := b.Declare("ext", program.PointerTo(program.Int))
	b.Call(f, h, b.FormalArg(f, 0))
	b.Call(noDeps, helper, b.FormalArg(noDeps, 0))
	b.SetDependenceInfo(noDeps, false)
	prog := b.Build()

	tests := []struct {
		name       string
		annotation Annotation
		expected   []program.FuncID
	}{
		{"non-pointer argument only adds the function", NewAnnotation(f, "sensitive", []int{0}, false), []program.FuncID{f}},
		{"missing argument only adds the function", NewAnnotation(f, "sensitive", []int{3}, false), []program.FuncID{f}},
		{"missing dependence info only adds the function", NewAnnotation(noDeps, "sensitive", []int{0}, false), []program.FuncID{noDeps}},
		{"void return only adds the function", NewAnnotation(f, "sensitive", nil, true), []program.FuncID{f}},
		{"declaration is skipped", NewAnnotation(decl, "sensitive", []int{0}, false), []program.FuncID{}},
		{"unknown function is skipped", NewAnnotation(program.FuncID(99), "sensitive", nil, false), []program.FuncID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := New(SecureName, prog)
			NewPropagator(nil, prog).Propagate(part, []Annotation{tt.annotation})
			if diff := cmp.Diff(tt.expected, part.Members()); diff != "" {
				t.Errorf("Unexpected members (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPropagatorReturnValue(t *testing.T) {
	b := program.NewBuilder()
	f := b.Define("F")
	b.SetResult(f, program.FuncOf(program.Void))
	cb := b.Define("cb")
	src := b.Define("source")
	b.SetResult(src, program.PointerTo(program.Int))
	b.Return(src, b.Instr(src))

	addr := b.AddressOf(f, cb)
	b.Call(f, src)
	mixed := b.Instr(f)
	b.Data(addr, mixed)
	b.Return(f, mixed)
	prog := b.Build()

	part := New(SecureName, prog)
	NewPropagator(nil, prog).Propagate(part, []Annotation{NewAnnotation(f, "sensitive", nil, true)})

	if diff := cmp.Diff([]program.FuncID{f}, part.Members()); diff != "" {
		t.Errorf("Unexpected members (-want +got):\n%s", diff)
	}
	if level, ok := part.RelatedLevel(cb); !ok || level != 1 {
		t.Errorf("Expected cb related at level 1, got %d (%v)", level, ok)
	}
	if _, ok := part.RelatedLevel(src); ok {
		t.Error("Expected source not to be related: its result does not reach the return")
	}
}

func TestPropagatorLevelsAcrossHops(t *testing.T) {
	b := program.NewBuilder()
	ptr := program.PointerTo(program.Int)
	a := b.Define("A", ptr)
	m := b.Define("M", ptr)
	z := b.Define("Z", ptr)
	b.Call(a, m, b.FormalArg(a, 0))
	b.Call(m, z, b.FormalArg(m, 0))
	prog := b.Build()

	part := New(SecureName, prog)
	prop := NewPropagator(nil, prog)
	prop.Propagate(part, []Annotation{NewAnnotation(a, "sensitive", []int{0}, false)})

	if level, _ := part.RelatedLevel(z); level != 2 {
		t.Errorf("Expected Z at level 2, got %d", level)
	}
	if level, ok := prop.Level(a); !ok || level != 0 {
		t.Errorf("Expected annotated level 0, got %d", level)
	}
}
