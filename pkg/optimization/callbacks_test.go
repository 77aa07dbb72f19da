package optimization

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

func TestCallbacksAdjustment(t *testing.T) {
	b := program.NewBuilder()
	callback := program.FuncOf(program.Void, program.Int)
	main := b.Define("main")
	f := b.Define("F", callback)
	caller := b.Define("Caller")
	cb := b.Define("cb", program.Int)
	f2 := b.Define("F2")
	cb2 := b.Define("cb2", program.Int)
	other := b.Define("Other")
	lib := b.Declare("lib")
	b.SetEntry(main)

	// Caller hands the secure cb to the secure F.
	b.Call(caller, f, b.AddressOf(caller, cb))
	// The secure F2 and the insecure Other both take cb2's address.
	b.AddressOf(f2, cb2)
	b.AddressOf(other, cb2)
	b.AddressOf(other, lib)
	b.Call(main, caller)
	b.Call(main, other)
	prog := b.Build()

	pp := partitionOf(prog, f, cb, f2)
	diags := runPipeline(t, prog, pp, nil, StageCallbacks)

	if diff := cmp.Diff([]program.FuncID{caller, cb2, other}, diags.Stages[0].Moved); diff != "" {
		t.Errorf("Unexpected moved functions (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]program.FuncID{main}, pp.Insecure.Members()); diff != "" {
		t.Errorf("Unexpected insecure members (-want +got):\n%s", diff)
	}
	if pp.Secure.Contains(lib) {
		t.Error("Expected declarations never to move")
	}
}

func TestCallbacksLeaveInsecureUsesAlone(t *testing.T) {
	b := program.NewBuilder()
	main := b.Define("main")
	user := b.Define("user")
	cb := b.Define("cb")
	s := b.Define("S")
	b.SetEntry(main)
	b.AddressOf(user, cb)
	b.Call(main, user)
	b.Call(main, s)
	prog := b.Build()

	pp := partitionOf(prog, s)
	diags := runPipeline(t, prog, pp, nil, StageCallbacks)
	if len(diags.Stages[0].Moved) != 0 {
		t.Errorf("Expected nothing to move, got %v", diags.Stages[0].Moved)
	}
}
