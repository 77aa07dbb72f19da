package optimization

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/solver"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// CutEdge is the ILP placement of one call edge.
type CutEdge struct {
	Caller program.FuncID
	Callee program.FuncID
	// Cut is true when caller and callee end up on different sides.
	Cut bool
}

// ILPProposal is a solved placement.
type ILPProposal struct {
	moved     []program.FuncID
	cutEdges  []CutEdge
	objective float64
	nodes     int
}

func (p *ILPProposal) Moved() []program.FuncID { return p.moved }

// CutEdges returns the placement of every call edge.
func (p *ILPProposal) CutEdges() []CutEdge { return p.cutEdges }

// Objective returns the optimal objective value.
func (p *ILPProposal) Objective() float64 { return p.objective }

// ILP places functions exactly with a 0/1 program: one variable per function
// (1 = secure) and one per call edge that is 1 only when the edge stays
// inside one partition. It maximizes uncut edge weight plus related-function
// rewards minus a size penalty.
type ILP struct {
	config *Config
	solver solver.Solver
	logger *logrus.Logger
}

// NewILP creates the stage. A nil solver uses branch-and-bound.
func NewILP(logger *logrus.Logger, config *Config, s solver.Solver) *ILP {
	if config == nil {
		config = DefaultConfig()
	}
	if s == nil {
		s = solver.NewBranchAndBound(logger, nil)
	}
	return &ILP{config: config, solver: s, logger: utils.LoggerOrDiscard(logger)}
}

func (s *ILP) Name() string { return StageILP }

type edgeVar struct {
	caller, callee program.FuncID
	v              solver.Var
}

// partitionModel is the 0/1 program with its variable mapping.
type partitionModel struct {
	model *solver.Model
	funcs map[program.FuncID]solver.Var
	edges []edgeVar
}

// BuildModel formulates the placement problem for the current partitions.
func (s *ILP) BuildModel(st *State) *solver.Model {
	return s.buildModel(st).model
}

func (s *ILP) buildModel(st *State) *partitionModel {
	prog := st.Program()
	secure := st.Partitions.Secure
	pm := &partitionModel{
		model: solver.NewModel("partition", solver.Maximize),
		funcs: make(map[program.FuncID]solver.Var),
	}
	m := pm.model
	limit := s.config.InfinityCap
	if limit <= 0 {
		limit = DefaultInfinityCap
	}

	for _, node := range st.Graph.Nodes() {
		f := node.Func
		fn := prog.Function(f)
		v := m.AddBinary(fmt.Sprintf("f%d", f))
		m.SetComment(v, fn.Name)
		pm.funcs[f] = v

		switch {
		case secure.Contains(f):
			m.Fix(v, 1)
		case fn.Declaration || fn.Intrinsic || fn.Entry:
			m.Fix(v, 0)
		}

		coef := -s.config.SizePenalty * float64(fn.Size)
		if level, ok := secure.RelatedLevel(f); ok {
			coef += s.config.RelatedReward * levelCoefficient(level)
		}
		m.AddObjective(v, coef)
	}

	for _, e := range st.Graph.CallEdges() {
		src, dst := pm.funcs[e.Caller], pm.funcs[e.Callee]
		v := m.AddBinary(fmt.Sprintf("e%d_%d", e.Caller, e.Callee))
		m.SetComment(v, prog.Name(e.Caller)+" -> "+prog.Name(e.Callee))
		pm.edges = append(pm.edges, edgeVar{caller: e.Caller, callee: e.Callee, v: v})

		weight := e.Weight.Value().Capped(limit)
		m.AddObjective(v, weight)
		m.AddConstraint("", solver.LessEqual, 1, solver.Term{Var: v, Coef: 1}, solver.Term{Var: src, Coef: -1}, solver.Term{Var: dst, Coef: 1})
		m.AddConstraint("", solver.LessEqual, 1, solver.Term{Var: v, Coef: 1}, solver.Term{Var: src, Coef: 1}, solver.Term{Var: dst, Coef: -1})

		// With both endpoints pinned the edge value is decided.
		srcVar, dstVar := m.Variable(src), m.Variable(dst)
		if srcVar.Fixed && dstVar.Fixed && weight >= 0 {
			if srcVar.Value == dstVar.Value {
				m.Fix(v, 1)
			} else {
				m.Fix(v, 0)
			}
		}
	}
	return pm
}

func (s *ILP) Run(st *State) (Proposal, error) {
	pm := s.buildModel(st)
	if s.config.ExportModel != "" {
		if err := s.export(pm.model); err != nil {
			s.logger.WithError(err).Warn("Failed to export partition model")
		}
	}

	assignment, err := s.solver.Solve(pm.model)
	if err != nil {
		return nil, fmt.Errorf("solving partition model: %w", err)
	}

	prog := st.Program()
	proposal := &ILPProposal{objective: assignment.Objective, nodes: assignment.Nodes}
	for _, node := range st.Graph.Nodes() {
		f := node.Func
		if assignment.IsSet(pm.funcs[f]) && !st.Partitions.Secure.Contains(f) && movable(prog, f) {
			proposal.moved = append(proposal.moved, f)
		}
	}
	for _, e := range pm.edges {
		cut := assignment.IsSet(pm.funcs[e.caller]) != assignment.IsSet(pm.funcs[e.callee])
		if cut && assignment.IsSet(e.v) {
			s.logger.WithFields(logrus.Fields{
				"caller": prog.Name(e.caller),
				"callee": prog.Name(e.callee),
			}).Warn("Cut edge solved as uncut")
		}
		proposal.cutEdges = append(proposal.cutEdges, CutEdge{Caller: e.caller, Callee: e.callee, Cut: cut})
	}

	s.logger.WithFields(logrus.Fields{
		"objective": proposal.objective,
		"nodes":     proposal.nodes,
		"moved":     len(proposal.moved),
	}).Debug("Partition model solved")
	return proposal, nil
}

func (s *ILP) Apply(st *State, p Proposal) {
	for _, f := range p.Moved() {
		st.Partitions.MoveToSecure(f)
	}
	if ip, ok := p.(*ILPProposal); ok {
		st.Diagnostics.CutEdges = ip.cutEdges
	}
}

func (s *ILP) export(m *solver.Model) error {
	file, err := utils.SafeCreateFile(s.config.ExportModel)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := solver.WriteLP(file, m); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	s.logger.WithField("path", s.config.ExportModel).Info("Partition model exported")
	return nil
}

// levelCoefficient is 1/level, with level 0 treated as 1.
func levelCoefficient(level int) float64 {
	if level <= 0 {
		return 1
	}
	return 1 / float64(level)
}
