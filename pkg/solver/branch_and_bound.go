package solver

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

const simplexTolerance = 1e-10

// Config bounds the branch-and-bound search.
type Config struct {
	// MaxNodes is the number of LP relaxations solved before giving up.
	MaxNodes int
	// MaxVariables rejects models with more free variables.
	MaxVariables int
	// Tolerance is the integrality and feasibility tolerance.
	Tolerance float64
}

// DefaultConfig returns the default search bounds.
func DefaultConfig() *Config {
	return &Config{
		MaxNodes:     10000,
		MaxVariables: 4000,
		Tolerance:    1e-6,
	}
}

// BranchAndBound solves 0/1 programs by depth-first branch-and-bound over
// simplex relaxations.
type BranchAndBound struct {
	config *Config
	logger *logrus.Logger
}

// NewBranchAndBound creates a solver. A nil config uses DefaultConfig.
func NewBranchAndBound(logger *logrus.Logger, config *Config) *BranchAndBound {
	if config == nil {
		config = DefaultConfig()
	}
	return &BranchAndBound{config: config, logger: utils.LoggerOrDiscard(logger)}
}

// free marks an unfixed variable in a subproblem.
const free int8 = -1

type subproblem struct {
	fixed []int8
	depth int
}

// Solve returns an optimal assignment of m.
func (s *BranchAndBound) Solve(m *Model) (*Assignment, error) {
	root := make([]int8, m.NumVars())
	freeCount := 0
	for i := range root {
		v := m.Variable(Var(i))
		switch {
		case !v.Fixed:
			root[i] = free
			freeCount++
		case v.Value > 0.5:
			root[i] = 1
		default:
			root[i] = 0
		}
	}
	if s.config.MaxVariables > 0 && freeCount > s.config.MaxVariables {
		return nil, fmt.Errorf("%w: %d free variables, limit %d", ErrModelTooLarge, freeCount, s.config.MaxVariables)
	}

	sign := 1.0
	if m.Sense == Minimize {
		sign = -1
	}

	s.logger.WithFields(logrus.Fields{
		"model":       m.Name,
		"variables":   m.NumVars(),
		"free":        freeCount,
		"constraints": len(m.Constraints()),
	}).Debug("Solving 0/1 program")

	var best []float64
	bestObj := math.Inf(-1)
	nodes := 0
	stack := []subproblem{{fixed: root}}

	for len(stack) > 0 {
		sp := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.config.MaxNodes > 0 && nodes >= s.config.MaxNodes {
			return nil, fmt.Errorf("%w after %d nodes", ErrNodeLimit, nodes)
		}
		nodes++

		values, bound, err := s.relax(m, sign, sp.fixed)
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if best != nil && bound <= bestObj+s.config.Tolerance {
			continue
		}

		j := s.branchVariable(values, sp.fixed)
		if j < 0 {
			rounded := make([]float64, len(values))
			for i, v := range values {
				rounded[i] = math.Round(v)
			}
			if !m.Satisfied(rounded, s.config.Tolerance) {
				continue
			}
			obj := sign * m.Evaluate(rounded)
			if best == nil || obj > bestObj {
				best, bestObj = rounded, obj
				s.logger.WithFields(logrus.Fields{
					"objective": sign * obj,
					"node":      nodes,
					"depth":     sp.depth,
				}).Debug("New incumbent")
			}
			continue
		}

		// The child on the rounding side is explored first.
		first, second := int8(1), int8(0)
		if values[j] < 0.5 {
			first, second = 0, 1
		}
		stack = append(stack, sp.child(j, second), sp.child(j, first))
	}

	if best == nil {
		return nil, ErrInfeasible
	}
	return &Assignment{Values: best, Objective: m.Evaluate(best), Nodes: nodes}, nil
}

func (sp subproblem) child(j int, value int8) subproblem {
	fixed := make([]int8, len(sp.fixed))
	copy(fixed, sp.fixed)
	fixed[j] = value
	return subproblem{fixed: fixed, depth: sp.depth + 1}
}

// branchVariable picks the free variable furthest from integral, lowest
// index first, or -1 when the relaxation is integral.
func (s *BranchAndBound) branchVariable(values []float64, fixed []int8) int {
	best, bestDist := -1, s.config.Tolerance
	for i, v := range values {
		if fixed[i] != free {
			continue
		}
		dist := math.Abs(v - math.Round(v))
		if dist > bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}

type row struct {
	coefs map[int]float64
	op    Relation
	rhs   float64
}

// relax solves the LP relaxation of m under fixed and returns the full value
// vector and the objective in maximization sense.
func (s *BranchAndBound) relax(m *Model, sign float64, fixed []int8) ([]float64, float64, error) {
	values := make([]float64, len(fixed))
	columns := make(map[int]int)
	var freeVars []int
	constant := 0.0
	for i, f := range fixed {
		if f == free {
			columns[i] = len(freeVars)
			freeVars = append(freeVars, i)
			continue
		}
		values[i] = float64(f)
		constant += m.Objective(Var(i)) * values[i]
	}

	var rows []row
	for _, c := range m.Constraints() {
		r := row{coefs: make(map[int]float64), op: c.Op, rhs: c.RHS}
		for _, t := range c.Terms {
			if col, ok := columns[int(t.Var)]; ok {
				r.coefs[col] += t.Coef
			} else {
				r.rhs -= t.Coef * values[t.Var]
			}
		}
		for col, coef := range r.coefs {
			if coef == 0 {
				delete(r.coefs, col)
			}
		}
		if len(r.coefs) == 0 {
			if !holds(0, r.op, r.rhs, s.config.Tolerance) {
				return nil, 0, ErrInfeasible
			}
			continue
		}
		if r.op == Equal {
			rows = append(rows, row{coefs: r.coefs, op: LessEqual, rhs: r.rhs}, row{coefs: r.coefs, op: GreaterEqual, rhs: r.rhs})
			continue
		}
		rows = append(rows, r)
	}

	nFree := len(freeVars)
	if nFree == 0 {
		return values, sign * constant, nil
	}

	// Standard form: one slack per row and x + u = 1 per free variable.
	nRows := len(rows) + nFree
	nCols := nFree + len(rows) + nFree
	A := mat.NewDense(nRows, nCols, nil)
	b := make([]float64, nRows)
	c := make([]float64, nCols)
	for k, i := range freeVars {
		c[k] = -sign * m.Objective(Var(i))
	}
	for r, rw := range rows {
		for col, coef := range rw.coefs {
			A.Set(r, col, coef)
		}
		if rw.op == GreaterEqual {
			A.Set(r, nFree+r, -1)
		} else {
			A.Set(r, nFree+r, 1)
		}
		b[r] = rw.rhs
		if b[r] < 0 {
			for j := 0; j < nCols; j++ {
				A.Set(r, j, -A.At(r, j))
			}
			b[r] = -b[r]
		}
	}
	for k := 0; k < nFree; k++ {
		r := len(rows) + k
		A.Set(r, k, 1)
		A.Set(r, nFree+len(rows)+k, 1)
		b[r] = 1
	}

	optF, optX, err := lp.Simplex(c, A, b, simplexTolerance, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, 0, ErrInfeasible
	case errors.Is(err, lp.ErrUnbounded):
		return nil, 0, ErrUnbounded
	case err != nil:
		return nil, 0, fmt.Errorf("solver: simplex relaxation: %w", err)
	}

	for k, i := range freeVars {
		values[i] = optX[k]
	}
	return values, -optF + sign*constant, nil
}

func holds(lhs float64, op Relation, rhs, tol float64) bool {
	switch op {
	case GreaterEqual:
		return lhs >= rhs-tol
	case Equal:
		return math.Abs(lhs-rhs) <= tol
	}
	return lhs <= rhs+tol
}
