package callgraph

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// Membership is the view of a partition the cost model needs.
type Membership interface {
	Contains(f program.FuncID) bool
	RelatedLevel(f program.FuncID) (int, bool)
}

// AssignWeights sets the node weights from the secure partition: every node
// gets its Size, secure members are Sensitive and related functions are
// SensitiveRelated with coefficient 1/level. Only the first call has an
// effect; weights are read-only afterwards.
func (g *Graph) AssignWeights(secure Membership) {
	if g.weighted {
		g.logger.Debug("Call graph weights already assigned")
		return
	}
	g.weighted = true

	inf := weights.PosInfinity[float64]()
	var sensitive, related int
	for _, n := range g.nodes {
		fn := g.prog.Function(n.Func)
		n.Weight.SetFactor(weights.Size, weights.NewDouble(float64(fn.Size)), weights.NewDouble(g.config.SizeCoef))

		if secure.Contains(n.Func) {
			n.Weight.SetFactor(weights.Sensitive, inf, weights.NewDouble(g.config.SensitiveCoef))
			sensitive++
		}
		if level, ok := secure.RelatedLevel(n.Func); ok {
			n.Weight.SetFactor(weights.SensitiveRelated, inf, weights.NewDouble(g.config.RelatedCoef*levelCoefficient(level)))
			related++
		}
	}

	g.logger.WithFields(logrus.Fields{
		"sensitive": sensitive,
		"related":   related,
	}).Debug("Call graph weights assigned")
}

// Weighted reports whether AssignWeights has run.
func (g *Graph) Weighted() bool { return g.weighted }

// levelCoefficient is 1/level, with level 0 treated as 1.
func levelCoefficient(level int) float64 {
	if level <= 0 {
		return 1
	}
	return 1 / float64(level)
}
