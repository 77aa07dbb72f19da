package optimization

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// DuplicatesProposal lists the functions found in both partitions.
type DuplicatesProposal struct {
	duplicated []program.FuncID
}

func (p *DuplicatesProposal) Moved() []program.FuncID { return nil }

// Duplicated returns the functions present in both partitions.
func (p *DuplicatesProposal) Duplicated() []program.FuncID { return p.duplicated }

// DuplicateFunctions reports functions that belong to both partitions. It
// never resolves them.
type DuplicateFunctions struct {
	logger *logrus.Logger
}

// NewDuplicateFunctions creates the stage.
func NewDuplicateFunctions(logger *logrus.Logger) *DuplicateFunctions {
	return &DuplicateFunctions{logger: utils.LoggerOrDiscard(logger)}
}

func (s *DuplicateFunctions) Name() string { return StageDuplicateFunctions }

func (s *DuplicateFunctions) Run(st *State) (Proposal, error) {
	return &DuplicatesProposal{duplicated: st.Partitions.Duplicates()}, nil
}

func (s *DuplicateFunctions) Apply(st *State, p Proposal) {
	dp, ok := p.(*DuplicatesProposal)
	if !ok {
		return
	}
	for _, f := range dp.duplicated {
		s.logger.WithField("function", st.Program().Name(f)).Warn("Function is in both partitions")
	}
	st.Diagnostics.addDuplicated(dp.duplicated)
}
