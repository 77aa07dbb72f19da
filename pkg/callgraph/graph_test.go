package callgraph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

type membership struct {
	members map[program.FuncID]bool
	related map[program.FuncID]int
}

func (m membership) Contains(f program.FuncID) bool { return m.members[f] }

func (m membership) RelatedLevel(f program.FuncID) (int, bool) {
	level, ok := m.related[f]
	return level, ok
}

type testProgram struct {
	prog                         *program.Program
	main, a, b, cb, user, extern program.FuncID
}

func buildTestProgram() testProgram {
	bld := program.NewBuilder()
	tp := testProgram{}
	tp.main = bld.Define("main")
	tp.a = bld.Define("A", program.StructOf(program.Int, program.Int), program.PointerTo(program.Int))
	tp.b = bld.Define("B")
	tp.cb = bld.Define("cb", program.Int)
	tp.user = bld.Define("user")
	tp.extern = bld.Declare("extern")
	bld.SetResult(tp.a, program.ArrayOf(3, program.Int))
	bld.SetEntry(tp.main)
	bld.SetSize(tp.main, 10)
	bld.SetSize(tp.a, 20)
	bld.SetSize(tp.b, 5)

	bld.Call(tp.main, tp.a, program.NoNode, program.NoNode)
	bld.Call(tp.main, tp.a, program.NoNode, program.NoNode)
	loop := bld.Call(tp.a, tp.b)
	bld.InLoop(loop)
	bld.Call(tp.b, tp.a, program.NoNode, program.NoNode)
	bld.Call(tp.b, tp.extern)
	bld.AddressOf(tp.user, tp.cb)
	bld.Call(tp.main, tp.user)

	tp.prog = bld.Build()
	return tp
}

func TestGraphEdgeWeights(t *testing.T) {
	tp := buildTestProgram()
	g := New(nil, tp.prog, nil)

	e, ok := g.Edge(tp.main, tp.a)
	if !ok {
		t.Fatal("Expected edge main -> A")
	}
	if got := e.CallNum().Value(); got != 2 {
		t.Errorf("Expected 2 calls, got %v", got)
	}
	if got := e.Weight.FactorValue(weights.ArgNum).Value(); got != 2 {
		t.Errorf("Expected 2 args, got %v", got)
	}
	if got := e.Weight.FactorValue(weights.ArgComplexity).Value(); got != 2 {
		t.Errorf("Expected arg complexity 2, got %v", got)
	}
	if got := e.Weight.FactorValue(weights.RetComplexity).Value(); got != 3 {
		t.Errorf("Expected ret complexity 3, got %v", got)
	}

	loop, ok := g.Edge(tp.a, tp.b)
	if !ok {
		t.Fatal("Expected edge A -> B")
	}
	if got := loop.CallNum().Value(); got != DefaultLoopCost {
		t.Errorf("Expected loop cost %d, got %v", DefaultLoopCost, got)
	}
	if got := g.EdgeCost(tp.a, tp.b).Value(); got != DefaultLoopCost+1 {
		t.Errorf("Expected edge cost in both directions %d, got %v", DefaultLoopCost+1, got)
	}

	if _, ok := g.Edge(tp.b, tp.extern); !ok {
		t.Error("Expected edge to declaration")
	}
	if got := len(g.Nodes()); got != tp.prog.NumFunctions() {
		t.Errorf("Expected %d nodes, got %d", tp.prog.NumFunctions(), got)
	}
}

func TestGraphNonCallUse(t *testing.T) {
	tp := buildTestProgram()
	g := New(nil, tp.prog, nil)

	edges := g.NonCallUseEdges()
	if len(edges) != 1 {
		t.Fatalf("Expected 1 non-call-use edge, got %d", len(edges))
	}
	if edges[0].Caller != tp.user || edges[0].Callee != tp.cb {
		t.Errorf("Expected user -> cb, got %d -> %d", edges[0].Caller, edges[0].Callee)
	}
	if edges[0].Weight.HasFactor(weights.CallNum) {
		t.Error("Expected a pure address use to carry no call count")
	}
}

func TestAssignWeights(t *testing.T) {
	tp := buildTestProgram()
	g := New(nil, tp.prog, nil)
	secure := membership{
		members: map[program.FuncID]bool{tp.a: true},
		related: map[program.FuncID]int{tp.b: 2, tp.cb: 0},
	}
	g.AssignWeights(secure)

	if !g.Node(tp.a).Weight.FactorValue(weights.Sensitive).IsPosInfinity() {
		t.Error("Expected A to be sensitive")
	}
	fv, ok := g.Node(tp.b).Weight.Factor(weights.SensitiveRelated)
	if !ok {
		t.Fatal("Expected B to be sensitive related")
	}
	if got := fv.Coef.Value(); got != 0.5 {
		t.Errorf("Expected coefficient 0.5, got %v", got)
	}
	if got, _ := g.Node(tp.cb).Weight.Factor(weights.SensitiveRelated); got.Coef.Value() != 1 {
		t.Errorf("Expected level 0 coefficient 1, got %v", got.Coef.Value())
	}
	if got := g.Node(tp.main).Weight.FactorValue(weights.Size).Value(); got != 10 {
		t.Errorf("Expected size 10, got %v", got)
	}

	// A second assignment must not change anything.
	g.AssignWeights(membership{members: map[program.FuncID]bool{tp.main: true}})
	if g.Node(tp.main).Weight.HasFactor(weights.Sensitive) {
		t.Error("Expected weights to be assigned only once")
	}
}

func TestStatistics(t *testing.T) {
	tp := buildTestProgram()
	g := New(nil, tp.prog, nil)
	secure := membership{members: map[program.FuncID]bool{tp.a: true, tp.b: true}}

	// main->A (2) and B->extern (1) are not wholly secure; main->user (1) neither.
	if got := g.StaticContextSwitches(secure).Value(); got != 4 {
		t.Errorf("Expected 4 context switches, got %v", got)
	}
	if got := g.BoundaryCalls(secure).Value(); got != 3 {
		t.Errorf("Expected 3 boundary calls, got %v", got)
	}
	if got := g.ArgsPassedAcross(secure).Value(); got != 4 {
		t.Errorf("Expected 4 args passed across, got %v", got)
	}
	if got := g.TCBSize(secure); got != 25 {
		t.Errorf("Expected TCB size 25, got %d", got)
	}

	groups := g.RecursiveGroups()
	if diff := cmp.Diff([][]program.FuncID{{tp.a, tp.b}}, groups); diff != "" {
		t.Errorf("Unexpected recursive groups (-want +got):\n%s", diff)
	}
}

func TestWriteDOT(t *testing.T) {
	tp := buildTestProgram()
	g := New(nil, tp.prog, nil)
	g.AssignWeights(membership{members: map[program.FuncID]bool{tp.a: true}})

	var buf bytes.Buffer
	if err := g.WriteDOT(&buf, nil); err != nil {
		t.Fatalf("WriteDOT failed: %v", err)
	}
	out := buf.String()

	expected := []string{
		`digraph "Call graph" {`,
		`color=green,label="A size 20"`,
		`color=red,label="extern size 0"`,
		`[label="100000"]`,
		`[style=dashed]`,
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, out)
		}
	}
}
