package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
)

// RenderMarkdown renders the human-readable report
func RenderMarkdown(report *models.PartitionReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Partition report: %s\n\n", report.ProgramInfo.Module)
	fmt.Fprintf(&b, "Generated by %s %s on %s using the %s call graph.\n\n",
		report.CreationInfo.ToolName, report.CreationInfo.ToolVersion,
		report.CreationInfo.Created, report.CreationInfo.Algorithm)

	b.WriteString("## Program\n\n")
	b.WriteString("| Functions | Defined | Declarations | Globals | Call sites | Size |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	p := report.ProgramInfo
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d |\n\n", p.Functions, p.Defined, p.Declarations, p.Globals, p.CallSites, p.Size)

	b.WriteString("## Annotations\n\n")
	if len(report.Annotations.Resolved) == 0 {
		b.WriteString("No annotations.\n\n")
	} else {
		b.WriteString("| Function | Label | Arguments | Return |\n|---|---|---|---|\n")
		for _, a := range report.Annotations.Resolved {
			fmt.Fprintf(&b, "| %s | %s | %s | %t |\n", code(a.Function), a.Label, ints(a.Arguments), a.Return)
		}
		b.WriteString("\n")
	}
	for _, name := range report.Annotations.Unresolved {
		fmt.Fprintf(&b, "- unresolved: %s\n", code(name))
	}
	if len(report.Annotations.Unresolved) > 0 {
		b.WriteString("\n")
	}

	writePartition(&b, report.Secure)
	writePartition(&b, report.Insecure)

	cg := report.CallGraph
	b.WriteString("## Call graph\n\n")
	fmt.Fprintf(&b, "- Functions: %d\n- Edges: %d\n- Static context switches: %s\n- Boundary calls: %s\n- Arguments passed across: %s\n\n",
		cg.TotalFunctions, cg.TotalEdges, cg.ContextSwitches, cg.BoundaryCalls, cg.ArgsPassedAcross)
	for i, group := range cg.RecursiveGroups {
		fmt.Fprintf(&b, "- Recursive group %d: %s\n", i+1, codes(group))
	}
	if len(cg.RecursiveGroups) > 0 {
		b.WriteString("\n")
	}
	var crossing []models.CallEdge
	for _, e := range cg.CallEdges {
		if e.Crossing {
			crossing = append(crossing, e)
		}
	}
	if len(crossing) > 0 {
		b.WriteString("### Boundary edges\n\n| Caller | Callee | Calls | Weight |\n|---|---|---|---|\n")
		for _, e := range crossing {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", code(e.Caller), code(e.Callee), e.CallNum, e.Weight)
		}
		b.WriteString("\n")
	}

	opt := report.Optimization
	if len(opt.Stages) > 0 {
		b.WriteString("## Optimization\n\n| Stage | Moved | Failed | Duration (ms) |\n|---|---|---|---|\n")
		for _, st := range opt.Stages {
			fmt.Fprintf(&b, "| %s | %s | %t | %d |\n", st.Name, codes(st.Moved), st.Failed, st.DurationMS)
		}
		b.WriteString("\n")
		for _, f := range opt.SolverFailures {
			fmt.Fprintf(&b, "- solver failure in %s: %s\n", f.Stage, f.Error)
		}
		if len(opt.Duplicated) > 0 {
			fmt.Fprintf(&b, "- duplicated functions: %s\n", codes(opt.Duplicated))
		}
		if len(opt.SolverFailures) > 0 || len(opt.Duplicated) > 0 {
			b.WriteString("\n")
		}
	}

	if cb := report.Callbacks; cb != nil {
		b.WriteString("## Callbacks\n\n")
		fmt.Fprintf(&b, "%d handler pairs, %d redirected calls, %d handle arguments.\n\n",
			len(cb.Handlers), cb.RedirectedCalls, cb.HandleArgs)
		if len(cb.Handlers) > 0 {
			b.WriteString("| Signature | Secure handler | Insecure handler |\n|---|---|---|\n")
			for _, h := range cb.Handlers {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", code(h.Signature), code(h.Secure), code(h.Insecure))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writePartition(b *strings.Builder, p models.PartitionInfo) {
	fmt.Fprintf(b, "## Partition %s\n\n", p.Name)
	fmt.Fprintf(b, "- Size: %d (%.1f%%)\n- TCB size: %d\n- Functions: %d\n- In interface: %s\n- Out interface: %s\n- Globals: %s\n\n",
		p.Size, p.Percent, p.TCBSize, len(p.Functions), codes(p.InInterface), codes(p.OutInterface), codes(p.Globals))
	if len(p.Related) > 0 {
		b.WriteString("| Related function | Level |\n|---|---|\n")
		for _, r := range p.Related {
			fmt.Fprintf(b, "| %s | %d |\n", code(r.Name), r.Level)
		}
		b.WriteString("\n")
	}
}

func code(s string) string {
	return "`" + strings.ReplaceAll(s, "|", `\|`) + "`"
}

func codes(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = code(s)
	}
	return strings.Join(quoted, ", ")
}

func ints(items []int) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, len(items))
	for i, n := range items {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
