// Package frontend builds the program representation from Go packages. It
// loads syntax and types with go/packages, builds SSA, resolves dynamic call
// targets with one of the x/tools call graph algorithms and lowers every
// function into program.Builder calls.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/annotations"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/config"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

var (
	// ErrNoPackages is returned when the patterns match no package.
	ErrNoPackages = errors.New("no packages matched")
	// ErrLoadFailed is returned when a loaded package has errors.
	ErrLoadFailed = errors.New("errors encountered during package loading")
)

// Algorithms lists the supported call graph algorithms.
var Algorithms = []string{"rta", "cha", "static", "vta"}

// DefaultAlgorithm is used when none is set.
const DefaultAlgorithm = "rta"

// Result is a loaded program.
type Result struct {
	Program *program.Program
	// Module is the module path whose packages were partitionable.
	Module string
	// Directives are the annotation directives found in source comments.
	Directives []annotations.Entry
	// Packages counts the loaded packages including dependencies.
	Packages int
}

// Loader loads Go packages into a program.
type Loader struct {
	logger    *logrus.Logger
	config    *config.ContextAwareConfig
	dir       string
	algorithm string
}

// NewLoader creates a loader. When cfg has no root package the module of the
// working directory is used.
func NewLoader(logger *logrus.Logger, cfg *config.ContextAwareConfig) *Loader {
	return &Loader{
		logger:    utils.LoggerOrDiscard(logger),
		config:    cfg,
		algorithm: DefaultAlgorithm,
	}
}

// SetDirectory sets the directory packages are resolved from.
func (l *Loader) SetDirectory(dir string) {
	l.dir = dir
}

// SetAlgorithm sets the call graph algorithm used to resolve dynamic calls.
func (l *Loader) SetAlgorithm(algorithm string) error {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	for _, a := range Algorithms {
		if a == algorithm {
			l.algorithm = algorithm
			return nil
		}
	}
	return fmt.Errorf("unsupported call graph algorithm: %s. Supported algorithms: rta, cha, static, vta", algorithm)
}

// Algorithm returns the configured call graph algorithm.
func (l *Loader) Algorithm() string {
	return l.algorithm
}

// Load loads the packages matching patterns and builds their program.
func (l *Loader) Load(ctx context.Context, patterns ...string) (*Result, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	if l.config.RootPackage == "" {
		module, err := FindModule(l.dir)
		if err != nil {
			return nil, err
		}
		l.config.SetRootPackage(module)
	}
	l.logger.WithFields(logrus.Fields{
		"patterns": patterns,
		"module":   l.config.RootPackage,
	}).Debug("Loading packages")

	cfg := &packages.Config{
		Context: ctx,
		Dir:     l.dir,
		Mode:    packages.LoadAllSyntax | packages.NeedDeps | packages.NeedImports,
		Fset:    token.NewFileSet(),
	}
	roots, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoPackages, patterns)
	}
	if packages.PrintErrors(roots) > 0 {
		return nil, ErrLoadFailed
	}

	all := collectPackages(roots)
	l.logger.WithField("packages", len(all)).Debug("Loaded packages including dependencies")

	var directives []annotations.Entry
	if l.config.Annotations.ScanDirectives {
		directives, err = ScanDirectives(ctx, l.partitionablePackages(all), l.config.DirectivePrefix(), l.config.DefaultLabel())
		if err != nil {
			return nil, err
		}
	}

	ssaProg, ssaPkgs := ssautil.AllPackages(all, ssa.InstantiateGenerics)
	ssaProg.Build()

	graph, err := l.callGraph(ssaProg, mainFunctions(ssaPkgs))
	if err != nil {
		return nil, fmt.Errorf("failed to generate call graph with %s algorithm: %w", l.algorithm, err)
	}

	prog := newTranslator(l.logger, l.config, graph).translate(ssautil.AllFunctions(ssaProg))
	l.logger.WithFields(logrus.Fields{
		"functions":  prog.NumFunctions(),
		"defined":    len(prog.Defined()),
		"call_sites": len(prog.CallSites()),
		"globals":    len(prog.Globals()),
		"directives": len(directives),
	}).Info("Program built")

	return &Result{
		Program:    prog,
		Module:     l.config.RootPackage,
		Directives: directives,
		Packages:   len(all),
	}, nil
}

// collectPackages flattens roots and their transitive imports, ordered by
// package path.
func collectPackages(roots []*packages.Package) []*packages.Package {
	seen := make(map[string]*packages.Package)
	var visit func(*packages.Package)
	visit = func(pkg *packages.Package) {
		if seen[pkg.PkgPath] != nil {
			return
		}
		seen[pkg.PkgPath] = pkg
		for _, dep := range pkg.Imports {
			visit(dep)
		}
	}
	for _, pkg := range roots {
		visit(pkg)
	}

	result := make([]*packages.Package, 0, len(seen))
	for _, pkg := range seen {
		result = append(result, pkg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PkgPath < result[j].PkgPath })
	return result
}

func (l *Loader) partitionablePackages(pkgs []*packages.Package) []*packages.Package {
	var result []*packages.Package
	for _, pkg := range pkgs {
		if l.config.IsPartitionable(pkg.PkgPath) {
			result = append(result, pkg)
		}
	}
	return result
}

func mainFunctions(pkgs []*ssa.Package) []*ssa.Function {
	var mains []*ssa.Function
	for _, pkg := range pkgs {
		if pkg == nil {
			continue
		}
		if main := pkg.Func("main"); main != nil && pkg.Pkg.Name() == "main" {
			mains = append(mains, main)
		}
		if init := pkg.Func("init"); init != nil {
			mains = append(mains, init)
		}
	}
	return mains
}

// callGraph resolves call targets with the configured algorithm. RTA and VTA
// need roots; without a main package CHA is used instead.
func (l *Loader) callGraph(prog *ssa.Program, mains []*ssa.Function) (*callgraph.Graph, error) {
	algorithm := l.algorithm
	if len(mains) == 0 && (algorithm == "rta" || algorithm == "vta") {
		l.logger.WithField("algorithm", algorithm).Warn("No main or init functions found, falling back to cha")
		algorithm = "cha"
	}
	l.logger.WithField("algorithm", algorithm).Debug("Building call graph")

	switch algorithm {
	case "rta":
		result := rta.Analyze(mains, true)
		if result == nil || result.CallGraph == nil {
			return nil, fmt.Errorf("RTA analysis returned nil")
		}
		return result.CallGraph, nil
	case "cha":
		return cha.CallGraph(prog), nil
	case "static":
		return static.CallGraph(prog), nil
	case "vta":
		roots := make(map[*ssa.Function]bool, len(mains))
		for _, m := range mains {
			roots[m] = true
		}
		return vta.CallGraph(roots, cha.CallGraph(prog)), nil
	}
	return nil, fmt.Errorf("unsupported algorithm: %s", algorithm)
}
