package optimization

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// GlobalsProposal is the set of globals the secure partition keeps.
type GlobalsProposal struct {
	keep    []program.GlobalID
	dropped []program.GlobalID
}

// Moved is empty: the stage moves no functions.
func (p *GlobalsProposal) Moved() []program.FuncID { return nil }

// Globals returns the globals kept by the partition.
func (p *GlobalsProposal) Globals() []program.GlobalID { return p.keep }

// Dropped returns the claimed globals that lost their place.
func (p *GlobalsProposal) Dropped() []program.GlobalID { return p.dropped }

// GlobalsMoveTo keeps only the globals that are used inside the secure
// partition and nowhere outside it.
type GlobalsMoveTo struct {
	logger *logrus.Logger
}

// NewGlobalsMoveTo creates the stage.
func NewGlobalsMoveTo(logger *logrus.Logger) *GlobalsMoveTo {
	return &GlobalsMoveTo{logger: utils.LoggerOrDiscard(logger)}
}

func (s *GlobalsMoveTo) Name() string { return StageGlobalsMoveTo }

func (s *GlobalsMoveTo) Run(st *State) (Proposal, error) {
	prog := st.Program()
	secure := st.Partitions.Secure

	proposal := &GlobalsProposal{}
	for _, g := range secure.Globals() {
		inside, outside := false, false
		for _, user := range prog.GlobalUsers(g) {
			if secure.Contains(user) {
				inside = true
			} else {
				outside = true
			}
		}
		if inside && !outside {
			proposal.keep = append(proposal.keep, g)
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"global":  prog.Global(g).Name,
			"inside":  inside,
			"outside": outside,
		}).Debug("Dropping global from secure partition")
		proposal.dropped = append(proposal.dropped, g)
	}
	return proposal, nil
}

func (s *GlobalsMoveTo) Apply(st *State, p Proposal) {
	gp, ok := p.(*GlobalsProposal)
	if !ok {
		return
	}
	for _, g := range gp.dropped {
		st.Partitions.Secure.DropGlobal(g)
	}
}
