package optimization

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

func TestKernighanLinMovesOnlyProfitableFunction(t *testing.T) {
	b := program.NewBuilder()
	main := b.Define("main")
	s := b.Define("S")
	a := b.Define("A")
	bb := b.Define("B")
	c := b.Define("C")
	b.SetEntry(main)

	// A and B each exchange 10 calls with S; B also talks to C, which main
	// keeps busy.
	calls(b, s, a, 5)
	calls(b, a, s, 5)
	calls(b, s, bb, 5)
	calls(b, bb, s, 5)
	calls(b, bb, c, 15)
	calls(b, main, c, 30)
	prog := b.Build()

	pp := partitionOf(prog, s)
	st := &State{Partitions: pp, Graph: callgraph.New(nil, prog, nil), Diagnostics: &Diagnostics{}}
	stage := NewKernighanLin(nil)
	proposal, err := stage.Run(st)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	kl := proposal.(*KLProposal)

	var order []program.FuncID
	var cumulative []float64
	for _, m := range kl.Sweep {
		order = append(order, m.Func)
		cumulative = append(cumulative, m.Cumulative.Value())
	}
	if diff := cmp.Diff([]program.FuncID{a, bb, c}, order); diff != "" {
		t.Errorf("Unexpected sweep order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10, 5, -10}, cumulative); diff != "" {
		t.Errorf("Unexpected cumulative gains (-want +got):\n%s", diff)
	}
	if kl.Best != 0 {
		t.Errorf("Expected best prefix 0, got %d", kl.Best)
	}
	if diff := cmp.Diff([]program.FuncID{bb, c}, kl.Reverted()); diff != "" {
		t.Errorf("Unexpected reverted moves (-want +got):\n%s", diff)
	}

	stage.Apply(st, proposal)
	if diff := cmp.Diff([]program.FuncID{s, a}, pp.Secure.Members()); diff != "" {
		t.Errorf("Unexpected secure members (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]program.FuncID{main, bb, c}, pp.Insecure.Members()); diff != "" {
		t.Errorf("Expected reverted moves back on their original side (-want +got):\n%s", diff)
	}
}

func TestKernighanLinTieKeepsLongerPrefix(t *testing.T) {
	b := program.NewBuilder()
	main := b.Define("main")
	s := b.Define("S")
	x := b.Define("X")
	b.SetEntry(main)
	b.Call(main, x)
	b.Call(x, s)
	prog := b.Build()

	pp := partitionOf(prog, s)
	diags := runPipeline(t, prog, pp, nil, StageKernighanLin)

	if diff := cmp.Diff([]program.FuncID{x}, diags.Stages[0].Moved); diff != "" {
		t.Errorf("Expected the zero-gain move to be kept (-want +got):\n%s", diff)
	}
	if pp.Secure.Contains(main) {
		t.Error("Expected the entry point never to move")
	}
}

func TestKernighanLinSkipsDeclarations(t *testing.T) {
	b := program.NewBuilder()
	main := b.Define("main")
	s := b.Define("S")
	ext := b.Declare("ext")
	b.SetEntry(main)
	calls(b, s, ext, 3)
	prog := b.Build()

	pp := partitionOf(prog, s)
	st := &State{Partitions: pp, Graph: callgraph.New(nil, prog, nil), Diagnostics: &Diagnostics{}}
	proposal, _ := NewKernighanLin(nil).Run(st)
	if got := len(proposal.(*KLProposal).Sweep); got != 0 {
		t.Errorf("Expected no candidates, got %d moves", got)
	}
}
