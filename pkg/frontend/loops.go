package frontend

import (
	"github.com/twmb/algoimpl/go/graph"
	"golang.org/x/tools/go/ssa"
)

// loopBlocks returns the indices of the basic blocks of fn that lie on a
// cycle of the control flow graph.
func loopBlocks(fn *ssa.Function) map[int]bool {
	inLoop := make(map[int]bool)
	if len(fn.Blocks) == 0 {
		return inLoop
	}

	cfg := graph.New(graph.Directed)
	nodes := make([]graph.Node, len(fn.Blocks))
	for i := range fn.Blocks {
		nodes[i] = cfg.MakeNode()
		*nodes[i].Value = i
	}
	for _, b := range fn.Blocks {
		for _, succ := range b.Succs {
			if succ == b {
				inLoop[b.Index] = true
				continue
			}
			// both nodes come from cfg so MakeEdge cannot fail
			_ = cfg.MakeEdge(nodes[b.Index], nodes[succ.Index])
		}
	}

	for _, component := range cfg.StronglyConnectedComponents() {
		if len(component) < 2 {
			continue
		}
		for _, n := range component {
			inLoop[(*n.Value).(int)] = true
		}
	}
	return inLoop
}
