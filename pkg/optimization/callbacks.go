package optimization

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// Callbacks keeps escaping function addresses on the trusted side: whoever
// takes the address of a secure function becomes secure, and a function whose
// address is taken inside the secure partition joins it together with every
// other function taking its address. Repeats until nothing moves.
type Callbacks struct {
	logger *logrus.Logger
}

// NewCallbacks creates the stage.
func NewCallbacks(logger *logrus.Logger) *Callbacks {
	return &Callbacks{logger: utils.LoggerOrDiscard(logger)}
}

func (s *Callbacks) Name() string { return StageCallbacks }

func (s *Callbacks) Run(st *State) (Proposal, error) {
	prog := st.Program()
	sources := make(map[program.FuncID][]program.FuncID)
	var sinks []program.FuncID
	for _, e := range st.Graph.NonCallUseEdges() {
		if _, ok := sources[e.Callee]; !ok {
			sinks = append(sinks, e.Callee)
		}
		sources[e.Callee] = append(sources[e.Callee], e.Caller)
	}
	sort.Slice(sinks, func(i, j int) bool { return sinks[i] < sinks[j] })

	secure := make(map[program.FuncID]bool)
	for _, f := range st.Partitions.Secure.Members() {
		secure[f] = true
	}
	moved := make(map[program.FuncID]bool)
	pull := func(f program.FuncID) bool {
		if secure[f] || !movable(prog, f) {
			return false
		}
		secure[f] = true
		moved[f] = true
		return true
	}

	for changed := true; changed; {
		changed = false
		for _, sink := range sinks {
			users := sources[sink]
			if !secure[sink] {
				if !anySecure(users, secure) || !movable(prog, sink) {
					continue
				}
				s.logger.WithField("function", prog.Name(sink)).Debug("Address taken in secure partition")
				changed = pull(sink) || changed
			}
			for _, u := range users {
				if pull(u) {
					s.logger.WithFields(logrus.Fields{
						"function": prog.Name(u),
						"callback": prog.Name(sink),
					}).Debug("Takes the address of a secure function")
					changed = true
				}
			}
		}
	}

	proposal := &moveProposal{}
	for f := range moved {
		proposal.moved = append(proposal.moved, f)
	}
	sort.Slice(proposal.moved, func(i, j int) bool { return proposal.moved[i] < proposal.moved[j] })
	return proposal, nil
}

func (s *Callbacks) Apply(st *State, p Proposal) {
	for _, f := range p.Moved() {
		st.Partitions.MoveToSecure(f)
	}
}

func anySecure(fs []program.FuncID, secure map[program.FuncID]bool) bool {
	for _, f := range fs {
		if secure[f] {
			return true
		}
	}
	return false
}
