package output

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
)

// WriteSummary prints a short coloured overview of the report
func WriteSummary(w io.Writer, report *models.PartitionReport, colors bool) {
	au := aurora.NewAurora(colors)

	fmt.Fprintln(w, au.Bold(fmt.Sprintf("Partitioned %s", report.ProgramInfo.Module)))
	fmt.Fprintf(w, "  %s %d functions, size %d (%.1f%%)\n",
		au.BrightGreen("secure:  "), len(report.Secure.Functions), report.Secure.Size, report.Secure.Percent)
	fmt.Fprintf(w, "  %s %d functions, size %d (%.1f%%)\n",
		au.Cyan("insecure:"), len(report.Insecure.Functions), report.Insecure.Size, report.Insecure.Percent)
	fmt.Fprintf(w, "  context switches: %s, boundary calls: %s\n",
		au.Magenta(report.CallGraph.ContextSwitches), report.CallGraph.BoundaryCalls)

	if n := len(report.Annotations.Unresolved); n > 0 {
		fmt.Fprintf(w, "  %s %d unresolved annotations\n", au.Yellow("warning:"), n)
	}
	for _, f := range report.Optimization.SolverFailures {
		fmt.Fprintf(w, "  %s %s: %s\n", au.Red("solver failure:"), f.Stage, f.Error)
	}
	if n := len(report.Optimization.Duplicated); n > 0 {
		fmt.Fprintf(w, "  %s %d functions in both partitions\n", au.Yellow("warning:"), n)
	}
}
