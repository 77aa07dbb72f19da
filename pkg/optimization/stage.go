// Package optimization refines the initial secure/insecure partitions with an
// ordered pipeline of heuristic and exact stages over the weighted call graph.
package optimization

import (
	"errors"
	"fmt"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

// Stage names accepted by the pipeline.
const (
	StageFunctionsMoveTo    = "functions-move-to"
	StageGlobalsMoveTo      = "globals-move-to"
	StageDuplicateFunctions = "duplicate-functions"
	StageKernighanLin       = "kernighan-lin"
	StageILP                = "ilp"
	StageCallbacks          = "callbacks"
)

// StageOrder is the order stages run in, whatever order they are requested.
var StageOrder = []string{
	StageFunctionsMoveTo,
	StageGlobalsMoveTo,
	StageDuplicateFunctions,
	StageKernighanLin,
	StageILP,
	StageCallbacks,
}

// Presets name groups of stages.
var Presets = map[string][]string{
	"local": {StageFunctionsMoveTo, StageGlobalsMoveTo, StageDuplicateFunctions},
	"kl":    {StageKernighanLin},
	"ilp":   {StageILP},
	"all":   StageOrder,
}

// ErrUnknownStage is returned for a stage or preset name that does not exist.
var ErrUnknownStage = errors.New("unknown optimization stage")

// ParseStages expands presets and returns the requested stages in pipeline
// order without duplicates.
func ParseStages(names []string) ([]string, error) {
	requested := make(map[string]bool)
	for _, name := range names {
		if preset, ok := Presets[name]; ok {
			for _, s := range preset {
				requested[s] = true
			}
			continue
		}
		if !isStage(name) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
		}
		requested[name] = true
	}

	var result []string
	for _, s := range StageOrder {
		if requested[s] {
			result = append(result, s)
		}
	}
	return result, nil
}

func isStage(name string) bool {
	for _, s := range StageOrder {
		if s == name {
			return true
		}
	}
	return false
}

// State is what every stage reads and commits to.
type State struct {
	Partitions  *partition.ProgramPartition
	Graph       *callgraph.Graph
	Diagnostics *Diagnostics
}

// Program returns the partitioned program.
func (s *State) Program() *program.Program {
	return s.Partitions.Program()
}

// Proposal is the result of a stage's Run, committed by its Apply.
type Proposal interface {
	// Moved returns the functions the proposal moves into the secure partition.
	Moved() []program.FuncID
}

// Stage is one optimization. Run computes a proposal without mutating the
// partitions; Apply commits it.
type Stage interface {
	Name() string
	Run(s *State) (Proposal, error)
	Apply(s *State, p Proposal)
}

// moveProposal is the proposal of stages that only move functions to secure.
type moveProposal struct {
	moved []program.FuncID
}

func (p *moveProposal) Moved() []program.FuncID { return p.moved }

// movable reports whether f may change partition at all.
func movable(prog *program.Program, f program.FuncID) bool {
	fn := prog.Function(f)
	return fn != nil && !fn.Declaration && !fn.Intrinsic
}
