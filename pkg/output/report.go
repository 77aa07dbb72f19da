package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/annotations"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/callbacks"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/optimization"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/version"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/weights"
)

// ReportVersion is the version of the report format
const ReportVersion = "0.1"

// Input is everything a partitioning run produced
type Input struct {
	Module      string
	Algorithm   string
	Partitions  *partition.ProgramPartition
	Graph       *callgraph.Graph
	Diagnostics *optimization.Diagnostics
	Rewrite     *callbacks.RewriteReport
	Annotations *annotations.Result
	Phases      []models.PhaseTiming
}

// ReportGenerator builds and writes partition reports
type ReportGenerator struct {
	logger *logrus.Logger
	format string
	// now is replaced in tests
	now func() time.Time
}

// NewReportGenerator creates a generator writing the given format
func NewReportGenerator(logger *logrus.Logger, format string) (*ReportGenerator, error) {
	if format == "" {
		format = FormatJSON
	}
	if !isFormat(format) {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
	return &ReportGenerator{
		logger: utils.LoggerOrDiscard(logger),
		format: format,
		now:    time.Now,
	}, nil
}

// Format returns the output format
func (g *ReportGenerator) Format() string { return g.format }

// BuildReport creates the report without writing it
func (g *ReportGenerator) BuildReport(in Input) *models.PartitionReport {
	pp := in.Partitions
	prog := pp.Program()

	report := &models.PartitionReport{
		ReportVersion: ReportVersion,
		CreationInfo: models.CreationInfo{
			Created:     g.now().UTC().Format(time.RFC3339),
			ToolName:    version.ToolName,
			ToolVersion: version.GetVersion(),
			Algorithm:   in.Algorithm,
		},
		ProgramInfo: buildProgramInfo(in.Module, prog),
		Annotations: buildAnnotationInfo(prog, in.Annotations),
		Functions:   buildFunctions(pp),
		Phases:      in.Phases,
	}

	total := programSize(prog)
	report.Secure = buildPartitionInfo(pp.Secure, in.Graph, total)
	report.Insecure = buildPartitionInfo(pp.Insecure, in.Graph, total)
	if in.Graph != nil {
		report.CallGraph = buildCallGraphInfo(in.Graph, pp.Secure)
	}
	if in.Diagnostics != nil {
		report.Optimization = buildOptimizationInfo(prog, in.Diagnostics)
	}
	if in.Rewrite != nil {
		report.Callbacks = buildCallbackInfo(prog, in.Rewrite)
	}

	g.logger.WithFields(logrus.Fields{
		"functions": len(report.Functions),
		"secure":    report.Secure.Size,
		"insecure":  report.Insecure.Size,
	}).Debug("Report built")
	return report
}

func buildProgramInfo(module string, prog *program.Program) models.ProgramInfo {
	info := models.ProgramInfo{
		Module:    module,
		Functions: prog.NumFunctions(),
		Defined:   len(prog.Defined()),
		Globals:   len(prog.Globals()),
		CallSites: len(prog.CallSites()),
		Size:      programSize(prog),
	}
	info.Declarations = info.Functions - info.Defined
	return info
}

func programSize(prog *program.Program) int {
	total := 0
	for _, f := range prog.Defined() {
		total += prog.Function(f).Size
	}
	return total
}

func buildAnnotationInfo(prog *program.Program, result *annotations.Result) models.AnnotationInfo {
	info := models.AnnotationInfo{Resolved: []models.Annotation{}}
	if result == nil {
		return info
	}
	for _, a := range result.Annotations {
		info.Resolved = append(info.Resolved, models.Annotation{
			Function:  prog.Name(a.Function()),
			Label:     a.Label(),
			Arguments: a.Arguments(),
			Return:    a.ReturnSensitive(),
		})
	}
	info.Unresolved = result.Unresolved
	return info
}

func buildPartitionInfo(p *partition.Partition, graph *callgraph.Graph, total int) models.PartitionInfo {
	prog := p.Program()
	info := models.PartitionInfo{
		Name:         p.Name(),
		Functions:    names(prog, p.Members()),
		InInterface:  names(prog, p.InInterface()),
		OutInterface: names(prog, p.OutInterface()),
		Globals:      []string{},
	}
	for _, f := range p.Members() {
		info.Size += prog.Function(f).Size
	}
	if total > 0 {
		info.Percent = float64(info.Size) * 100 / float64(total)
	}
	if graph != nil {
		info.TCBSize = graph.TCBSize(p)
	}
	for _, g := range p.Globals() {
		info.Globals = append(info.Globals, prog.Global(g).Name)
	}
	for _, f := range p.RelatedFunctions() {
		level, _ := p.RelatedLevel(f)
		info.Related = append(info.Related, models.RelatedFunction{Name: prog.Name(f), Level: level})
	}
	return info
}

func buildFunctions(pp *partition.ProgramPartition) []models.Function {
	prog := pp.Program()
	var result []models.Function
	for _, f := range prog.Defined() {
		fn := prog.Function(f)
		mf := models.Function{
			Name:         fn.Name,
			Package:      fn.Package,
			Signature:    fn.Signature().String(),
			Size:         fn.Size,
			Partition:    placement(pp, f),
			IsEntryPoint: fn.Entry,
			IsHandler:    fn.Handler != nil,
			InInterface:  pp.Secure.IsInInterface(f) || pp.Insecure.IsInInterface(f),
			OutInterface: pp.Secure.IsOutInterface(f) || pp.Insecure.IsOutInterface(f),
		}
		for i, p := range fn.Params {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("arg%d", i)
			}
			mf.Parameters = append(mf.Parameters, models.Parameter{Name: name, Type: p.Type.String()})
		}
		if level, ok := pp.Secure.RelatedLevel(f); ok {
			mf.RelatedLevel = &level
		}
		result = append(result, mf)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func placement(pp *partition.ProgramPartition, f program.FuncID) string {
	secure, insecure := pp.Secure.Contains(f), pp.Insecure.Contains(f)
	switch {
	case secure && insecure:
		return models.PartitionBoth
	case secure:
		return models.PartitionSecure
	case insecure:
		return models.PartitionInsecure
	default:
		return models.PartitionUncovered
	}
}

func buildCallGraphInfo(graph *callgraph.Graph, secure *partition.Partition) models.CallGraphInfo {
	prog := graph.Program()
	edges := graph.Edges()
	info := models.CallGraphInfo{
		TotalFunctions:   len(graph.Nodes()),
		TotalEdges:       len(edges),
		ContextSwitches:  graph.StaticContextSwitches(secure).String(),
		BoundaryCalls:    graph.BoundaryCalls(secure).String(),
		ArgsPassedAcross: graph.ArgsPassedAcross(secure).String(),
		CallEdges:        make([]models.CallEdge, 0, len(edges)),
	}
	for _, group := range graph.RecursiveGroups() {
		info.RecursiveGroups = append(info.RecursiveGroups, names(prog, group))
	}
	for _, e := range edges {
		edge := models.CallEdge{
			Caller:     prog.Name(e.Caller),
			Callee:     prog.Name(e.Callee),
			Weight:     e.Weight.Value().String(),
			Crossing:   secure.Contains(e.Caller) != secure.Contains(e.Callee),
			NonCallUse: e.IsNonCallUse(),
		}
		if e.Weight.HasFactor(weights.CallNum) {
			edge.CallNum = callCount(e.CallNum())
		}
		info.CallEdges = append(info.CallEdges, edge)
	}
	return info
}

func callCount(n weights.Double) string {
	if n.IsPosInfinity() {
		return "loop"
	}
	return n.String()
}

func buildOptimizationInfo(prog *program.Program, d *optimization.Diagnostics) models.OptimizationInfo {
	info := models.OptimizationInfo{
		Stages:     make([]models.StageInfo, 0, len(d.Stages)),
		Duplicated: names(prog, d.Duplicated),
	}
	for _, st := range d.Stages {
		info.Stages = append(info.Stages, models.StageInfo{
			Name:       st.Name,
			Moved:      names(prog, st.Moved),
			Failed:     st.Failed,
			DurationMS: st.Duration.Milliseconds(),
		})
	}
	for _, f := range d.SolverFailures {
		info.SolverFailures = append(info.SolverFailures, models.SolverFailureInfo{Stage: f.Stage, Error: f.Err.Error()})
	}
	for _, e := range d.CutEdges {
		info.CutEdges = append(info.CutEdges, models.CutEdgeInfo{
			Caller: prog.Name(e.Caller),
			Callee: prog.Name(e.Callee),
			Cut:    e.Cut,
		})
	}
	return info
}

func buildCallbackInfo(prog *program.Program, r *callbacks.RewriteReport) *models.CallbackInfo {
	info := &models.CallbackInfo{
		Handlers:        make([]models.HandlerInfo, 0, len(r.Handlers)),
		Params:          make([]models.CallbackParam, 0, len(r.Params)),
		RedirectedCalls: len(r.RedirectedCalls),
		HandleArgs:      len(r.HandleArgs),
	}
	for _, h := range r.Handlers {
		info.Handlers = append(info.Handlers, models.HandlerInfo{
			Signature: h.Signature,
			Secure:    prog.Name(h.Secure),
			Insecure:  prog.Name(h.Insecure),
		})
	}
	for _, p := range r.Params {
		info.Params = append(info.Params, models.CallbackParam{
			Function: prog.Name(p.Func),
			Param:    p.Param,
			Handler:  prog.Name(p.Handler),
		})
	}
	return info
}

// names returns the function names of ids, never nil so JSON shows [].
func names(prog *program.Program, ids []program.FuncID) []string {
	result := make([]string, 0, len(ids))
	for _, f := range ids {
		result = append(result, prog.Name(f))
	}
	return result
}
