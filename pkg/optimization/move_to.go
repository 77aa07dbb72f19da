package optimization

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// FunctionsMoveTo pulls out-interface functions into the secure partition
// when every call reaching them comes from inside, or when a secure caller
// invokes them from a loop body.
type FunctionsMoveTo struct {
	logger *logrus.Logger
}

// NewFunctionsMoveTo creates the stage.
func NewFunctionsMoveTo(logger *logrus.Logger) *FunctionsMoveTo {
	return &FunctionsMoveTo{logger: utils.LoggerOrDiscard(logger)}
}

func (s *FunctionsMoveTo) Name() string { return StageFunctionsMoveTo }

func (s *FunctionsMoveTo) Run(st *State) (Proposal, error) {
	prog := st.Program()
	secure := st.Partitions.Secure

	proposal := &moveProposal{}
	for _, f := range secure.OutInterface() {
		if !movable(prog, f) {
			continue
		}
		sites := prog.CallSitesOf(f)
		switch {
		case calledOnlyFrom(sites, secure.Contains):
			s.logger.WithField("function", prog.Name(f)).Debug("Called from secure partition only")
			proposal.moved = append(proposal.moved, f)
		case calledInLoopFrom(sites, secure.Contains):
			s.logger.WithField("function", prog.Name(f)).Debug("Called from a secure loop")
			proposal.moved = append(proposal.moved, f)
		}
	}
	return proposal, nil
}

func (s *FunctionsMoveTo) Apply(st *State, p Proposal) {
	for _, f := range p.Moved() {
		st.Partitions.MoveToSecure(f)
	}
}

func calledOnlyFrom(sites []*program.CallSite, inside func(program.FuncID) bool) bool {
	for _, cs := range sites {
		if !inside(cs.Caller) {
			return false
		}
	}
	return true
}

func calledInLoopFrom(sites []*program.CallSite, inside func(program.FuncID) bool) bool {
	for _, cs := range sites {
		if cs.InLoop && inside(cs.Caller) {
			return true
		}
	}
	return false
}
