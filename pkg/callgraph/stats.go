package callgraph

import (
	"sort"

	"github.com/twmb/algoimpl/go/graph"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// StaticContextSwitches is the saturating sum of call counts over every edge
// that is not wholly inside the secure partition.
func (g *Graph) StaticContextSwitches(secure Membership) weights.Double {
	var total weights.Double
	for _, e := range g.CallEdges() {
		if secure.Contains(e.Caller) && secure.Contains(e.Callee) {
			continue
		}
		total = weights.Sum(total, e.CallNum())
	}
	return total
}

// BoundaryCalls sums the call counts of edges with exactly one endpoint in
// the partition.
func (g *Graph) BoundaryCalls(part Membership) weights.Double {
	var total weights.Double
	for _, e := range g.CallEdges() {
		if part.Contains(e.Caller) != part.Contains(e.Callee) {
			total = weights.Sum(total, e.CallNum())
		}
	}
	return total
}

// ArgsPassedAcross sums call count times argument count over edges crossing
// the partition boundary.
func (g *Graph) ArgsPassedAcross(part Membership) weights.Double {
	var total weights.Double
	for _, e := range g.CallEdges() {
		if part.Contains(e.Caller) == part.Contains(e.Callee) {
			continue
		}
		total = weights.Sum(total, weights.Mult(e.CallNum(), e.Weight.FactorValue(weights.ArgNum)))
	}
	return total
}

// RecursiveGroups returns the strongly connected components of the call
// graph that contain a cycle, each sorted by id, ordered by their first
// member.
func (g *Graph) RecursiveGroups() [][]program.FuncID {
	dg := graph.New(graph.Directed)
	nodes := make([]graph.Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = dg.MakeNode()
		*nodes[i].Value = n.Func
	}

	selfLoops := make(map[program.FuncID]bool)
	for _, e := range g.CallEdges() {
		if e.Caller == e.Callee {
			selfLoops[e.Caller] = true
			continue
		}
		if err := dg.MakeEdge(nodes[e.Caller], nodes[e.Callee]); err != nil {
			g.logger.WithError(err).Debug("Skipping call graph edge in SCC computation")
		}
	}

	var groups [][]program.FuncID
	for _, component := range dg.StronglyConnectedComponents() {
		group := make([]program.FuncID, 0, len(component))
		for _, n := range component {
			group = append(group, (*n.Value).(program.FuncID))
		}
		if len(group) == 1 && !selfLoops[group[0]] {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i] < group[j] })
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

// TCBSize sums the instruction counts of the partition members.
func (g *Graph) TCBSize(part Membership) int {
	total := 0
	for _, n := range g.nodes {
		if part.Contains(n.Func) {
			total += g.prog.Function(n.Func).Size
		}
	}
	return total
}

// ProgramSize sums the instruction counts of every function.
func (g *Graph) ProgramSize() int {
	total := 0
	for _, fn := range g.prog.Functions() {
		total += fn.Size
	}
	return total
}
