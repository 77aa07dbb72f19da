package callgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// WriteDOT renders the graph in Graphviz format. Sensitive or secure nodes
// are green, declarations red. Edge labels carry the call count, "loop" for
// an infinite count, and non-call uses are dashed.
func (g *Graph) WriteDOT(w io.Writer, secure Membership) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, `digraph "Call graph" {`)
	fmt.Fprintln(bw, `	label="Call graph";`)

	for _, n := range g.nodes {
		fn := g.prog.Function(n.Func)
		color := "black"
		switch {
		case n.Weight.HasFactor(weights.Sensitive) || (secure != nil && secure.Contains(n.Func)):
			color = "green"
		case fn.Declaration:
			color = "red"
		}
		fmt.Fprintf(bw, "\tn%d [shape=record,color=%s,label=%s];\n", n.Func, color, strconv.Quote(nodeLabel(n, fn.Name)))
	}

	for _, e := range g.Edges() {
		attrs := ""
		if e.Weight.HasFactor(weights.CallNum) {
			attrs = "label=" + strconv.Quote(callLabel(e.CallNum()))
		}
		if e.IsNonCallUse() {
			if attrs != "" {
				attrs += ","
			}
			attrs += "style=dashed"
		}
		fmt.Fprintf(bw, "\tn%d -> n%d [%s];\n", e.Caller, e.Callee, attrs)
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func nodeLabel(n *Node, name string) string {
	label := name
	if fv, ok := n.Weight.Factor(weights.Size); ok {
		label += " size " + strconv.Itoa(int(fv.Value.Value()))
	}
	if fv, ok := n.Weight.Factor(weights.SensitiveRelated); ok {
		if fv.Value.IsPosInfinity() {
			label += " sensitive related coef " + fv.Coef.String()
		} else {
			label += " sensitive related level " + fv.Value.String()
		}
	}
	return label
}

func callLabel(calls weights.Double) string {
	if calls.IsPosInfinity() {
		return "loop"
	}
	return calls.String()
}
