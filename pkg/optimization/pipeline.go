package optimization

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/solver"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// DefaultInfinityCap replaces infinite edge weights in the ILP objective.
const DefaultInfinityCap = 1e9

// Config holds the ILP parameters.
type Config struct {
	RelatedReward float64
	SizePenalty   float64
	InfinityCap   float64
	// ExportModel is a path to write the ILP model to in LP format.
	ExportModel string
}

// DefaultConfig returns the default ILP parameters.
func DefaultConfig() *Config {
	return &Config{
		RelatedReward: 100,
		SizePenalty:   1,
		InfinityCap:   DefaultInfinityCap,
	}
}

// SolverFailure records a stage whose solver gave up. Nothing was committed.
type SolverFailure struct {
	Stage string
	Err   error
}

func (f SolverFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

// StageResult is what one stage did.
type StageResult struct {
	Name     string
	Moved    []program.FuncID
	Failed   bool
	Duration time.Duration
}

// Diagnostics collects what the pipeline observed.
type Diagnostics struct {
	Duplicated     []program.FuncID
	SolverFailures []SolverFailure
	Stages         []StageResult
	// CutEdges is set when the ILP stage committed.
	CutEdges []CutEdge
}

func (d *Diagnostics) addDuplicated(fs []program.FuncID) {
	seen := make(map[program.FuncID]bool, len(d.Duplicated))
	for _, f := range d.Duplicated {
		seen[f] = true
	}
	for _, f := range fs {
		if !seen[f] {
			d.Duplicated = append(d.Duplicated, f)
			seen[f] = true
		}
	}
}

// Pipeline runs the optimization stages over a partition pair.
type Pipeline struct {
	logger *logrus.Logger
	state  *State
	stages map[string]Stage
}

// NewPipeline creates a pipeline mutating pp. A nil solver uses the built-in
// branch-and-bound.
func NewPipeline(logger *logrus.Logger, pp *partition.ProgramPartition, graph *callgraph.Graph, config *Config, s solver.Solver) *Pipeline {
	logger = utils.LoggerOrDiscard(logger)
	stages := []Stage{
		NewFunctionsMoveTo(logger),
		NewGlobalsMoveTo(logger),
		NewDuplicateFunctions(logger),
		NewKernighanLin(logger),
		NewILP(logger, config, s),
		NewCallbacks(logger),
	}
	p := &Pipeline{
		logger: logger,
		state:  &State{Partitions: pp, Graph: graph},
		stages: make(map[string]Stage, len(stages)),
	}
	for _, st := range stages {
		p.stages[st.Name()] = st
	}
	return p
}

// Run executes the requested stages in pipeline order. Names may be presets.
// Only unknown names are an error; a failing solver is recorded in the
// diagnostics and the remaining stages still run.
func (p *Pipeline) Run(names []string) (*Diagnostics, error) {
	ordered, err := ParseStages(names)
	if err != nil {
		return nil, err
	}

	diags := &Diagnostics{}
	p.state.Diagnostics = diags
	if !p.state.Graph.Weighted() {
		p.state.Graph.AssignWeights(p.state.Partitions.Secure)
	}

	for _, name := range ordered {
		stage := p.stages[name]
		start := time.Now()
		result := StageResult{Name: name}

		proposal, err := stage.Run(p.state)
		if err != nil {
			p.logger.WithError(err).WithField("stage", name).Warn("Optimization stage failed")
			diags.SolverFailures = append(diags.SolverFailures, SolverFailure{Stage: name, Err: err})
			result.Failed = true
			result.Duration = time.Since(start)
			diags.Stages = append(diags.Stages, result)
			continue
		}

		stage.Apply(p.state, proposal)
		result.Moved = proposal.Moved()
		p.state.Partitions.Refresh()
		p.state.Partitions.RefreshGlobals(result.Moved)
		result.Duration = time.Since(start)
		diags.Stages = append(diags.Stages, result)

		p.logger.WithFields(logrus.Fields{
			"stage":    name,
			"moved":    len(result.Moved),
			"secure":   p.state.Partitions.Secure.Size(),
			"insecure": p.state.Partitions.Insecure.Size(),
			"duration": result.Duration,
		}).Debug("Optimization stage applied")
	}
	return diags, nil
}
