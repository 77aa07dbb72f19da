// Package solver formulates and solves 0/1 integer linear programs.
package solver

import (
	"errors"
	"fmt"
)

var (
	// ErrInfeasible is returned when no assignment satisfies the constraints.
	ErrInfeasible = errors.New("solver: model is infeasible")
	// ErrUnbounded is returned when the objective can grow without limit.
	ErrUnbounded = errors.New("solver: model is unbounded")
	// ErrNodeLimit is returned when branch-and-bound exhausts its node budget.
	ErrNodeLimit = errors.New("solver: branch-and-bound node limit reached")
	// ErrModelTooLarge is returned when the model exceeds the variable budget.
	ErrModelTooLarge = errors.New("solver: model exceeds variable limit")
)

// Solver solves a model.
type Solver interface {
	Solve(m *Model) (*Assignment, error)
}

// Sense is the optimization direction.
type Sense int

const (
	Maximize Sense = iota
	Minimize
)

func (s Sense) String() string {
	if s == Minimize {
		return "Minimize"
	}
	return "Maximize"
}

// Relation is a constraint comparison.
type Relation int

const (
	LessEqual Relation = iota
	GreaterEqual
	Equal
)

func (r Relation) String() string {
	switch r {
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	}
	return "<="
}

// Var identifies a model variable.
type Var int

// Variable is a binary decision variable, optionally pinned to a value.
type Variable struct {
	Name    string
	Comment string
	Fixed   bool
	Value   float64
}

// Term is coef * variable.
type Term struct {
	Var  Var
	Coef float64
}

// Constraint is Σ terms (op) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Relation
	RHS   float64
}

// Model is a 0/1 linear program.
type Model struct {
	Name        string
	Sense       Sense
	vars        []Variable
	objective   []float64
	constraints []Constraint
}

// NewModel returns an empty model.
func NewModel(name string, sense Sense) *Model {
	return &Model{Name: name, Sense: sense}
}

// AddBinary adds a 0/1 variable.
func (m *Model) AddBinary(name string) Var {
	m.vars = append(m.vars, Variable{Name: name})
	m.objective = append(m.objective, 0)
	return Var(len(m.vars) - 1)
}

// SetComment attaches a human readable description to v.
func (m *Model) SetComment(v Var, comment string) {
	m.vars[v].Comment = comment
}

// Fix pins v to value, which must be 0 or 1.
func (m *Model) Fix(v Var, value float64) {
	m.vars[v].Fixed = true
	m.vars[v].Value = value
}

// AddObjective adds coef to v's objective coefficient.
func (m *Model) AddObjective(v Var, coef float64) {
	m.objective[v] += coef
}

// Objective returns v's objective coefficient.
func (m *Model) Objective(v Var) float64 {
	return m.objective[v]
}

// AddConstraint appends Σ terms (op) rhs.
func (m *Model) AddConstraint(name string, op Relation, rhs float64, terms ...Term) {
	m.constraints = append(m.constraints, Constraint{Name: name, Terms: terms, Op: op, RHS: rhs})
}

// NumVars returns the number of variables.
func (m *Model) NumVars() int { return len(m.vars) }

// Variable returns the description of v.
func (m *Model) Variable(v Var) Variable { return m.vars[v] }

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Evaluate returns the objective of a full assignment.
func (m *Model) Evaluate(values []float64) float64 {
	total := 0.0
	for i, c := range m.objective {
		total += c * values[i]
	}
	return total
}

// Satisfied reports whether values meet every constraint and pin within tol.
func (m *Model) Satisfied(values []float64, tol float64) bool {
	for i, v := range m.vars {
		if v.Fixed && abs(values[i]-v.Value) > tol {
			return false
		}
	}
	for _, c := range m.constraints {
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var]
		}
		switch c.Op {
		case LessEqual:
			if lhs > c.RHS+tol {
				return false
			}
		case GreaterEqual:
			if lhs < c.RHS-tol {
				return false
			}
		case Equal:
			if abs(lhs-c.RHS) > tol {
				return false
			}
		}
	}
	return true
}

// Assignment is a solved model.
type Assignment struct {
	Values    []float64
	Objective float64
	Nodes     int
}

// Value returns the value of v.
func (a *Assignment) Value(v Var) float64 {
	return a.Values[v]
}

// IsSet reports whether v is 1.
func (a *Assignment) IsSet(v Var) bool {
	return a.Values[v] > 0.5
}

func (a *Assignment) String() string {
	return fmt.Sprintf("objective %g over %d variables (%d nodes)", a.Objective, len(a.Values), a.Nodes)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
