package config

import (
	"fmt"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/annotations"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/callgraph"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/optimization"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/solver"
)

// CallGraphConfig returns the cost model, falling back to the built-in
// defaults for unset values.
func (c *Config) CallGraphConfig() *callgraph.Config {
	cfg := callgraph.DefaultConfig()
	w := c.Weights
	setPositive(&cfg.LoopCost, w.LoopCost)
	setPositive(&cfg.SensitiveCoef, w.SensitiveCoef)
	setPositive(&cfg.RelatedCoef, w.RelatedCoef)
	setPositive(&cfg.SizeCoef, w.SizeCoef)
	setPositive(&cfg.CallNumCoef, w.CallNumCoef)
	setPositive(&cfg.ArgNumCoef, w.ArgNumCoef)
	setPositive(&cfg.ArgComplexityCoef, w.ArgComplexityCoef)
	setPositive(&cfg.RetComplexityCoef, w.RetComplexityCoef)
	return cfg
}

// OptimizationConfig returns the ILP objective parameters.
func (c *Config) OptimizationConfig() *optimization.Config {
	cfg := optimization.DefaultConfig()
	setPositive(&cfg.RelatedReward, c.ILP.RelatedReward)
	setPositive(&cfg.SizePenalty, c.ILP.SizePenalty)
	setPositive(&cfg.InfinityCap, c.ILP.InfinityCap)
	cfg.ExportModel = c.ILP.ExportModel
	return cfg
}

// SolverConfig returns the branch-and-bound limits.
func (c *Config) SolverConfig() *solver.Config {
	cfg := solver.DefaultConfig()
	if c.Solver.MaxNodes > 0 {
		cfg.MaxNodes = c.Solver.MaxNodes
	}
	if c.Solver.MaxVariables > 0 {
		cfg.MaxVariables = c.Solver.MaxVariables
	}
	setPositive(&cfg.Tolerance, c.Solver.Tolerance)
	return cfg
}

// Stages returns the configured pipeline stages after validating them.
func (c *Config) Stages() ([]string, error) {
	if _, err := optimization.ParseStages(c.Pipeline.Stages); err != nil {
		return nil, fmt.Errorf("invalid [pipeline] stages: %w", err)
	}
	return c.Pipeline.Stages, nil
}

// DirectivePrefix returns the annotation directive prefix.
func (c *Config) DirectivePrefix() string {
	if c.Annotations.DirectivePrefix == "" {
		return annotations.DefaultPrefix
	}
	return c.Annotations.DirectivePrefix
}

// DefaultLabel returns the label used by directives that name none.
func (c *Config) DefaultLabel() string {
	if c.Annotations.DefaultLabel == "" {
		return annotations.DefaultLabel
	}
	return c.Annotations.DefaultLabel
}

func setPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
