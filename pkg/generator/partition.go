// Package generator runs a complete partitioning: load the program, resolve
// annotations, compute the initial partitions, optimize them and collect
// everything the report needs.
package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/annotations"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/callbacks"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/config"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/frontend"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/optimization"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/output"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/partition"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/solver"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// Options selects what to partition and how
type Options struct {
	// Package is a package pattern or a directory, "." by default
	Package string
	// Algorithm is the call graph algorithm for dynamic calls
	Algorithm string
	// AnnotationFiles are JSON or YAML annotation files
	AnnotationFiles []string
	// Stages overrides the configured pipeline stages when set
	Stages []string
	// RewriteCallbacks runs the callback boundary rewrite after optimizing
	RewriteCallbacks bool
	// Config is the loaded configuration; nil loads the default one
	Config *config.Config
	// Solver replaces the built-in branch-and-bound
	Solver solver.Solver
}

// GeneratePartition partitions a Go program and returns the report input
func GeneratePartition(ctx context.Context, logger *logrus.Logger, opts Options) (*output.Input, error) {
	logger = utils.LoggerOrDiscard(logger)
	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.DefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load default config: %w", err)
		}
	}
	stages := opts.Stages
	if len(stages) == 0 {
		var err error
		if stages, err = cfg.Stages(); err != nil {
			return nil, err
		}
	}
	if _, err := optimization.ParseStages(stages); err != nil {
		return nil, err
	}

	var files [][]annotations.Entry
	for _, path := range opts.AnnotationFiles {
		if !utils.FileExists(path) {
			return nil, fmt.Errorf("annotation file not found: %s", path)
		}
		entries, err := annotations.LoadFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, entries)
	}

	dir, pattern, err := resolvePackageToDirectory(opts.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve package %s: %w", opts.Package, err)
	}
	logger.WithFields(logrus.Fields{"package": opts.Package, "dir": dir, "pattern": pattern}).Debug("Resolved package")

	tracker := utils.NewInstrumentation(logger).NewPhaseTracker("partition")

	tracker.StartPhase("load")
	loader := frontend.NewLoader(logger, config.WithRootPackage(cfg, ""))
	loader.SetDirectory(dir)
	if err := loader.SetAlgorithm(opts.Algorithm); err != nil {
		return nil, err
	}
	loaded, err := loader.Load(ctx, pattern)
	if err != nil {
		return nil, err
	}
	prog := loaded.Program

	tracker.StartPhase("annotations")
	resolved := annotations.NewResolver(logger, prog).Resolve(append(files, loaded.Directives)...)
	if len(resolved.Annotations) == 0 {
		logger.Warn("No annotations resolved; every function stays insecure")
	}

	tracker.StartPhase("partition")
	pp := partition.NewPartitioner(logger, prog).Partition(resolved.Annotations)

	tracker.StartPhase("weights")
	graph := callgraph.New(logger, prog, cfg.CallGraphConfig())
	graph.AssignWeights(pp.Secure)

	tracker.StartPhase("optimize")
	s := opts.Solver
	if s == nil {
		s = solver.NewBranchAndBound(logger, cfg.SolverConfig())
	}
	diags, err := optimization.NewPipeline(logger, pp, graph, cfg.OptimizationConfig(), s).Run(stages)
	if err != nil {
		return nil, err
	}

	var rewrite *callbacks.RewriteReport
	if opts.RewriteCallbacks {
		tracker.StartPhase("rewrite")
		rewrite = callbacks.NewRewriter(logger, prog).Rewrite(pp.Secure, pp.Insecure)
	}
	tracker.Complete(prog.NumFunctions())

	logger.WithFields(logrus.Fields{
		"secure":          pp.Secure.Size(),
		"insecure":        pp.Insecure.Size(),
		"duplicated":      len(diags.Duplicated),
		"solver_failures": len(diags.SolverFailures),
	}).Info("Partitioning complete")

	return &output.Input{
		Module:      loaded.Module,
		Algorithm:   loader.Algorithm(),
		Partitions:  pp,
		Graph:       graph,
		Diagnostics: diags,
		Rewrite:     rewrite,
		Annotations: resolved,
		Phases:      phaseTimings(tracker),
	}, nil
}

func phaseTimings(tracker *utils.PhaseTracker) []models.PhaseTiming {
	names, durations := tracker.Durations()
	result := make([]models.PhaseTiming, 0, len(names))
	for _, name := range names {
		result = append(result, models.PhaseTiming{Name: name, DurationMS: durations[name].Milliseconds()})
	}
	return result
}

// resolvePackageToDirectory splits a package argument into the directory to
// load from and the pattern to load. Directories are loaded in place so that
// their own go.mod is used.
func resolvePackageToDirectory(packageSpec string) (dir string, pattern string, err error) {
	if packageSpec == "" || packageSpec == "." || packageSpec == "./" {
		return "", ".", nil
	}

	if base, ok := strings.CutSuffix(packageSpec, "/..."); ok && utils.DirectoryExists(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return "", "", err
		}
		return abs, "./...", nil
	}

	if utils.DirectoryExists(packageSpec) {
		abs, err := filepath.Abs(packageSpec)
		if err != nil {
			return "", "", err
		}
		return abs, ".", nil
	}

	if strings.HasPrefix(packageSpec, "./") || strings.HasPrefix(packageSpec, "../") || filepath.IsAbs(packageSpec) {
		return "", "", fmt.Errorf("directory does not exist: %w", os.ErrNotExist)
	}
	return "", packageSpec, nil
}
