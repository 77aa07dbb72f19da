package optimization

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/solver"
)

type failingSolver struct {
	err error
}

func (s failingSolver) Solve(*solver.Model) (*solver.Assignment, error) {
	return nil, s.err
}

// ilpProgram: S calls the small A ten times; the large B sits between main
// and S with a single call each way.
func ilpProgram() (*program.Program, map[string]program.FuncID) {
	b := program.NewBuilder()
	main := b.Define("main")
	s := b.Define("S")
	a := b.Define("A")
	bb := b.Define("B")
	b.SetEntry(main)
	b.SetSize(s, 1)
	b.SetSize(a, 1)
	b.SetSize(bb, 50)

	calls(b, s, a, 10)
	b.Call(main, bb)
	b.Call(bb, s)
	return b.Build(), map[string]program.FuncID{"main": main, "S": s, "A": a, "B": bb}
}

func TestILPPlacement(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	config := &Config{SizePenalty: 1, InfinityCap: DefaultInfinityCap}
	diags := runPipeline(t, prog, pp, config, StageILP)

	if len(diags.SolverFailures) != 0 {
		t.Fatalf("Unexpected solver failures: %v", diags.SolverFailures)
	}
	if diff := cmp.Diff([]program.FuncID{ids["S"], ids["A"]}, pp.Secure.Members()); diff != "" {
		t.Errorf("Unexpected secure members (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]program.FuncID{ids["main"], ids["B"]}, pp.Insecure.Members()); diff != "" {
		t.Errorf("Unexpected insecure members (-want +got):\n%s", diff)
	}

	cut := make(map[string]bool)
	for _, e := range diags.CutEdges {
		cut[prog.Name(e.Caller)+" -> "+prog.Name(e.Callee)] = e.Cut
	}
	wantCut := map[string]bool{"S -> A": false, "main -> B": false, "B -> S": true}
	if diff := cmp.Diff(wantCut, cut); diff != "" {
		t.Errorf("Unexpected cut edges (-want +got):\n%s", diff)
	}
}

func TestILPEdgeVariables(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	st := &State{Partitions: pp, Graph: callgraph.New(nil, prog, nil), Diagnostics: &Diagnostics{}}
	st.Graph.AssignWeights(pp.Secure)
	stage := NewILP(nil, &Config{SizePenalty: 1, InfinityCap: DefaultInfinityCap}, nil)
	pm := stage.buildModel(st)

	assignment, err := solver.NewBranchAndBound(nil, nil).Solve(pm.model)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if len(pm.edges) != 3 {
		t.Fatalf("Expected 3 edge variables, got %d", len(pm.edges))
	}
	for _, e := range pm.edges {
		name := prog.Name(e.caller) + " -> " + prog.Name(e.callee)
		if pm.model.Objective(e.v) <= 0 {
			t.Fatalf("Expected a positive weight on %s, got %v", name, pm.model.Objective(e.v))
		}
		uncut := assignment.IsSet(pm.funcs[e.caller]) == assignment.IsSet(pm.funcs[e.callee])
		if assignment.IsSet(e.v) != uncut {
			t.Errorf("Expected edge variable %s to be %v, got %v", name, uncut, assignment.Value(e.v))
		}
	}
	if !assignment.IsSet(pm.funcs[ids["A"]]) || assignment.IsSet(pm.funcs[ids["B"]]) {
		t.Errorf("Expected A secure and B insecure, got %s", assignment)
	}
}

func TestILPRelatedReward(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	pp.Secure.AddRelated(ids["B"], 1)
	config := &Config{RelatedReward: 100, SizePenalty: 1, InfinityCap: DefaultInfinityCap}
	runPipeline(t, prog, pp, config, StageILP)

	if !pp.Secure.Contains(ids["B"]) {
		t.Error("Expected the reward to pull B into the secure partition")
	}
	if _, ok := pp.Secure.RelatedLevel(ids["B"]); ok {
		t.Error("Expected B to leave the related functions once secure")
	}
}

func TestILPModel(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	st := &State{Partitions: pp, Graph: callgraph.New(nil, prog, nil), Diagnostics: &Diagnostics{}}
	m := NewILP(nil, DefaultConfig(), nil).BuildModel(st)

	// Four functions and three call edges, two constraints per edge.
	if m.NumVars() != 7 {
		t.Errorf("Expected 7 variables, got %d", m.NumVars())
	}
	if len(m.Constraints()) != 6 {
		t.Errorf("Expected 6 constraints, got %d", len(m.Constraints()))
	}
	pins := map[string]float64{"main": 0, "S": 1}
	for name, value := range pins {
		v := m.Variable(solver.Var(ids[name]))
		if !v.Fixed || v.Value != value {
			t.Errorf("Expected %s pinned to %v, got %+v", name, value, v)
		}
	}
	if m.Variable(solver.Var(ids["A"])).Fixed {
		t.Error("Expected A to be free")
	}
}

func TestILPSolverFailure(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	before := pp.Secure.Members()

	p := NewPipeline(nil, pp, callgraph.New(nil, prog, nil), nil, failingSolver{err: solver.ErrInfeasible})
	diags, err := p.Run([]string{StageILP, StageCallbacks})
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	if len(diags.SolverFailures) != 1 {
		t.Fatalf("Expected 1 solver failure, got %d", len(diags.SolverFailures))
	}
	if !errors.Is(diags.SolverFailures[0].Err, solver.ErrInfeasible) {
		t.Errorf("Expected ErrInfeasible, got %v", diags.SolverFailures[0].Err)
	}
	if diff := cmp.Diff(before, pp.Secure.Members()); diff != "" {
		t.Errorf("Expected no partial commit (-want +got):\n%s", diff)
	}
	if len(diags.Stages) != 2 || diags.Stages[1].Name != StageCallbacks {
		t.Errorf("Expected the pipeline to continue after the failure, got %+v", diags.Stages)
	}
}

func TestILPExportModel(t *testing.T) {
	prog, ids := ilpProgram()
	pp := partitionOf(prog, ids["S"])
	path := filepath.Join(t.TempDir(), "partition.lp")
	config := DefaultConfig()
	config.ExportModel = path
	runPipeline(t, prog, pp, config, StageILP)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read exported model: %v", err)
	}
	for _, want := range []string{"Maximize", "Subject To", "Binaries", "\\ f2: A"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected exported model to contain %q", want)
		}
	}
}
