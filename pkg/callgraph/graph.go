// Package callgraph is the weighted call graph the optimization pipeline
// reasons about. Nodes are functions, edges caller->callee pairs carrying
// call counts, argument and return marshalling costs and non-call-use flags.
package callgraph

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// DefaultLoopCost is the call count charged for a call inside a loop body.
const DefaultLoopCost = 100000

// Config holds the cost model parameters.
type Config struct {
	LoopCost float64

	SensitiveCoef     float64
	RelatedCoef       float64
	SizeCoef          float64
	CallNumCoef       float64
	ArgNumCoef        float64
	ArgComplexityCoef float64
	RetComplexityCoef float64
}

// DefaultConfig returns unit coefficients and the default loop cost.
func DefaultConfig() *Config {
	return &Config{
		LoopCost:          DefaultLoopCost,
		SensitiveCoef:     1,
		RelatedCoef:       1,
		SizeCoef:          1,
		CallNumCoef:       1,
		ArgNumCoef:        1,
		ArgComplexityCoef: 1,
		RetComplexityCoef: 1,
	}
}

// Node is a function in the call graph.
type Node struct {
	Func   program.FuncID
	Weight weights.Weight
	out    []*Edge
	in     []*Edge
}

// Out returns the edges leaving the node.
func (n *Node) Out() []*Edge { return n.out }

// In returns the edges entering the node.
func (n *Node) In() []*Edge { return n.in }

// Edge is a caller->callee pair. Multiple call sites between the same pair
// share one edge.
type Edge struct {
	Caller program.FuncID
	Callee program.FuncID
	Weight weights.Weight
}

// CallNum returns the accumulated call count of the edge.
func (e *Edge) CallNum() weights.Double {
	return e.Weight.FactorValue(weights.CallNum)
}

// IsNonCallUse reports whether the callee's address is used as data by the
// caller.
func (e *Edge) IsNonCallUse() bool {
	return e.Weight.HasFactor(weights.NonCallUse)
}

type edgeKey struct {
	caller, callee program.FuncID
}

// Graph is the weighted call graph. Structure and edge weights are fixed at
// construction; node weights are assigned once by AssignWeights.
type Graph struct {
	prog     *program.Program
	config   *Config
	logger   *logrus.Logger
	nodes    []*Node
	edges    map[edgeKey]*Edge
	weighted bool
}

// New builds the call graph of prog: one node per function, declarations
// included, and one edge per caller/callee pair.
func New(logger *logrus.Logger, prog *program.Program, config *Config) *Graph {
	if config == nil {
		config = DefaultConfig()
	}
	g := &Graph{
		prog:   prog,
		config: config,
		logger: utils.LoggerOrDiscard(logger),
		edges:  make(map[edgeKey]*Edge),
	}
	for _, fn := range prog.Functions() {
		g.nodes = append(g.nodes, &Node{Func: fn.ID})
	}
	g.addCallEdges()
	g.addNonCallUseEdges()

	g.logger.WithFields(logrus.Fields{
		"nodes": len(g.nodes),
		"edges": len(g.edges),
	}).Debug("Call graph built")
	return g
}

func (g *Graph) addCallEdges() {
	loopCost := weights.NewDouble(g.config.LoopCost)
	for _, site := range g.prog.CallSites() {
		if site.Callee == program.NoFunc {
			continue
		}
		e := g.edge(site.Caller, site.Callee)
		if site.InLoop {
			e.Weight.Accumulate(weights.CallNum, loopCost)
		} else {
			e.Weight.Accumulate(weights.CallNum, weights.NewDouble(1))
		}
	}
	for _, e := range g.edges {
		g.setCallCost(e)
	}
}

// setCallCost records the marshalling cost of calling e.Callee.
func (g *Graph) setCallCost(e *Edge) {
	callee := g.prog.Function(e.Callee)
	var argComplexity int64
	for _, p := range callee.Params {
		argComplexity += p.Type.Complexity()
	}
	if fv, ok := e.Weight.Factor(weights.CallNum); ok {
		e.Weight.SetFactor(weights.CallNum, fv.Value, weights.NewDouble(g.config.CallNumCoef))
	}
	e.Weight.SetFactor(weights.ArgNum, weights.NewDouble(float64(len(callee.Params))), weights.NewDouble(g.config.ArgNumCoef))
	e.Weight.SetFactor(weights.ArgComplexity, weights.NewDouble(float64(argComplexity)), weights.NewDouble(g.config.ArgComplexityCoef))
	e.Weight.SetFactor(weights.RetComplexity, weights.NewDouble(float64(callee.Result.Complexity())), weights.NewDouble(g.config.RetComplexityCoef))
}

func (g *Graph) addNonCallUseEdges() {
	for _, fn := range g.prog.Functions() {
		for _, user := range g.prog.AddressUsers(fn.ID) {
			e := g.edge(user, fn.ID)
			e.Weight.AddFactor(weights.NonCallUse, weights.NewDouble(1))
		}
	}
}

func (g *Graph) edge(caller, callee program.FuncID) *Edge {
	key := edgeKey{caller, callee}
	if e, ok := g.edges[key]; ok {
		return e
	}
	e := &Edge{Caller: caller, Callee: callee}
	g.edges[key] = e
	g.nodes[caller].out = append(g.nodes[caller].out, e)
	g.nodes[callee].in = append(g.nodes[callee].in, e)
	return e
}

// Program returns the underlying program.
func (g *Graph) Program() *program.Program { return g.prog }

// Config returns the cost model parameters.
func (g *Graph) Config() *Config { return g.config }

// Node returns the node of f.
func (g *Graph) Node(f program.FuncID) *Node {
	if f < 0 || int(f) >= len(g.nodes) {
		return nil
	}
	return g.nodes[f]
}

// Nodes returns every node in function id order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edge returns the edge caller->callee.
func (g *Graph) Edge(caller, callee program.FuncID) (*Edge, bool) {
	e, ok := g.edges[edgeKey{caller, callee}]
	return e, ok
}

// Edges returns every edge ordered by caller then callee.
func (g *Graph) Edges() []*Edge {
	result := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Caller != result[j].Caller {
			return result[i].Caller < result[j].Caller
		}
		return result[i].Callee < result[j].Callee
	})
	return result
}

// CallEdges returns the edges that carry at least one call.
func (g *Graph) CallEdges() []*Edge {
	var result []*Edge
	for _, e := range g.Edges() {
		if e.Weight.HasFactor(weights.CallNum) {
			result = append(result, e)
		}
	}
	return result
}

// NonCallUseEdges returns the edges flagged as non-call uses.
func (g *Graph) NonCallUseEdges() []*Edge {
	var result []*Edge
	for _, e := range g.Edges() {
		if e.IsNonCallUse() {
			result = append(result, e)
		}
	}
	return result
}

// EdgeCost returns the call count between a and b in both directions.
func (g *Graph) EdgeCost(a, b program.FuncID) weights.Double {
	var cost weights.Double
	if e, ok := g.Edge(a, b); ok {
		cost = weights.Sum(cost, e.CallNum())
	}
	if a != b {
		if e, ok := g.Edge(b, a); ok {
			cost = weights.Sum(cost, e.CallNum())
		}
	}
	return cost
}
