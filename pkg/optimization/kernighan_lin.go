package optimization

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// KLMove is one step of the Kernighan-Lin sweep.
type KLMove struct {
	Func program.FuncID
	Gain weights.Double
	// Cumulative is the gain of the whole prefix ending at this move.
	Cumulative weights.Double
}

// KLProposal is the full sweep and the prefix that is committed.
type KLProposal struct {
	Sweep []KLMove
	// Best is the index of the last committed move, -1 for none.
	Best int
}

// Moved returns the functions of the best prefix.
func (p *KLProposal) Moved() []program.FuncID {
	moved := make([]program.FuncID, 0, p.Best+1)
	for _, m := range p.Sweep[:p.Best+1] {
		moved = append(moved, m.Func)
	}
	return moved
}

// Reverted returns the functions moved during the sweep that stay insecure.
func (p *KLProposal) Reverted() []program.FuncID {
	var reverted []program.FuncID
	for _, m := range p.Sweep[p.Best+1:] {
		reverted = append(reverted, m.Func)
	}
	return reverted
}

// KernighanLin moves insecure functions into the secure partition one at a
// time by decreasing call-count gain and keeps the prefix of moves with the
// highest cumulative gain.
type KernighanLin struct {
	logger *logrus.Logger
}

// NewKernighanLin creates the stage.
func NewKernighanLin(logger *logrus.Logger) *KernighanLin {
	return &KernighanLin{logger: utils.LoggerOrDiscard(logger)}
}

func (s *KernighanLin) Name() string { return StageKernighanLin }

func (s *KernighanLin) Run(st *State) (Proposal, error) {
	candidates := s.candidates(st)
	costs := s.edgeCosts(st, candidates)

	gains := make(map[program.FuncID]weights.Double, len(candidates))
	for _, f := range candidates {
		gains[f] = s.initialGain(st, f)
	}

	proposal := &KLProposal{Best: -1}
	var cumulative weights.Double
	remaining := candidates
	for len(remaining) > 0 {
		// Candidates are sorted, so a strict comparison keeps the lowest id.
		idx := 0
		for i := 1; i < len(remaining); i++ {
			if gains[remaining[idx]].Less(gains[remaining[i]]) {
				idx = i
			}
		}
		moved := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		cumulative = weights.Sum(cumulative, gains[moved])
		proposal.Sweep = append(proposal.Sweep, KLMove{Func: moved, Gain: gains[moved], Cumulative: cumulative})

		for _, c := range remaining {
			if cost, ok := costs[c][moved]; ok {
				gains[c] = weights.Sum(gains[c], weights.Mult(weights.NewDouble(2), cost))
			}
		}
	}

	// The later prefix wins ties, starting from the empty prefix.
	var best weights.Double
	for i, m := range proposal.Sweep {
		if !m.Cumulative.Less(best) {
			best = m.Cumulative
			proposal.Best = i
		}
	}

	s.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"committed":  proposal.Best + 1,
		"gain":       best.String(),
	}).Debug("Kernighan-Lin sweep finished")
	return proposal, nil
}

func (s *KernighanLin) Apply(st *State, p Proposal) {
	for _, f := range p.Moved() {
		st.Partitions.MoveToSecure(f)
	}
}

// candidates are the insecure members that may move: no declarations,
// intrinsics or entry points.
func (s *KernighanLin) candidates(st *State) []program.FuncID {
	prog := st.Program()
	var result []program.FuncID
	for _, f := range st.Partitions.Insecure.Members() {
		if !movable(prog, f) || prog.Function(f).Entry {
			continue
		}
		result = append(result, f)
	}
	return result
}

// edgeCosts returns, per candidate, the call counts to each neighbor in both
// directions.
func (s *KernighanLin) edgeCosts(st *State, candidates []program.FuncID) map[program.FuncID]map[program.FuncID]weights.Double {
	costs := make(map[program.FuncID]map[program.FuncID]weights.Double, len(candidates))
	for _, f := range candidates {
		node := st.Graph.Node(f)
		m := make(map[program.FuncID]weights.Double)
		for _, e := range node.In() {
			m[e.Caller] = weights.Sum(m[e.Caller], e.CallNum())
		}
		for _, e := range node.Out() {
			m[e.Callee] = weights.Sum(m[e.Callee], e.CallNum())
		}
		delete(m, f)
		costs[f] = m
	}
	return costs
}

// initialGain is the external minus the internal call count of f, where
// internal means the neighbor is an insecure member.
func (s *KernighanLin) initialGain(st *State, f program.FuncID) weights.Double {
	insecure := st.Partitions.Insecure
	var internal, external weights.Double
	node := st.Graph.Node(f)
	count := func(neighbor program.FuncID, calls weights.Double) {
		if neighbor == f {
			return
		}
		if insecure.Contains(neighbor) {
			internal = weights.Sum(internal, calls)
		} else {
			external = weights.Sum(external, calls)
		}
	}
	for _, e := range node.In() {
		count(e.Caller, e.CallNum())
	}
	for _, e := range node.Out() {
		count(e.Callee, e.CallNum())
	}
	return weights.Sum(external, internal.Neg())
}
