// Package partition holds the secure and insecure function sets together with
// their interfaces and the propagation of sensitivity annotations that seeds
// them.
package partition

import (
	"sort"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

const (
	SecureName   = "secure"
	InsecureName = "insecure"
)

// Partition is one side of the trust boundary.
type Partition struct {
	name    string
	prog    *program.Program
	members map[program.FuncID]struct{}
	inIface map[program.FuncID]struct{}
	outIf   map[program.FuncID]struct{}
	globals map[program.GlobalID]struct{}
	dropped map[program.GlobalID]struct{}
	related map[program.FuncID]int
}

// New returns an empty partition over prog.
func New(name string, prog *program.Program) *Partition {
	return &Partition{
		name:    name,
		prog:    prog,
		members: make(map[program.FuncID]struct{}),
		inIface: make(map[program.FuncID]struct{}),
		outIf:   make(map[program.FuncID]struct{}),
		globals: make(map[program.GlobalID]struct{}),
		dropped: make(map[program.GlobalID]struct{}),
		related: make(map[program.FuncID]int),
	}
}

// Name returns "secure" or "insecure".
func (p *Partition) Name() string { return p.name }

// Program returns the program the partition ranges over.
func (p *Partition) Program() *program.Program { return p.prog }

// Contains reports membership of f.
func (p *Partition) Contains(f program.FuncID) bool {
	_, ok := p.members[f]
	return ok
}

// Add inserts f.
func (p *Partition) Add(f program.FuncID) {
	p.members[f] = struct{}{}
}

// Remove deletes f.
func (p *Partition) Remove(f program.FuncID) {
	delete(p.members, f)
}

// Size returns the number of members.
func (p *Partition) Size() int { return len(p.members) }

// Members returns the members sorted by id.
func (p *Partition) Members() []program.FuncID {
	return sortedFuncs(p.members)
}

// InInterface returns the members called from outside, sorted.
func (p *Partition) InInterface() []program.FuncID {
	return sortedFuncs(p.inIface)
}

// OutInterface returns the non-members called from inside, sorted.
func (p *Partition) OutInterface() []program.FuncID {
	return sortedFuncs(p.outIf)
}

// IsInInterface reports whether f is in the in-interface.
func (p *Partition) IsInInterface(f program.FuncID) bool {
	_, ok := p.inIface[f]
	return ok
}

// IsOutInterface reports whether f is in the out-interface.
func (p *Partition) IsOutInterface(f program.FuncID) bool {
	_, ok := p.outIf[f]
	return ok
}

// RefreshInterfaces recomputes both interfaces from the current members.
func (p *Partition) RefreshInterfaces() {
	p.inIface = ComputeInInterface(p.prog, p.members)
	p.outIf = ComputeOutInterface(p.prog, p.members)
}

// Globals returns the referenced globals sorted by id.
func (p *Partition) Globals() []program.GlobalID {
	result := make([]program.GlobalID, 0, len(p.globals))
	for g := range p.globals {
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// ReferencesGlobal reports whether g is referenced.
func (p *Partition) ReferencesGlobal(g program.GlobalID) bool {
	_, ok := p.globals[g]
	return ok
}

// AddGlobal records g as referenced.
func (p *Partition) AddGlobal(g program.GlobalID) {
	p.globals[g] = struct{}{}
}

// SetGlobals replaces the referenced globals.
func (p *Partition) SetGlobals(globals []program.GlobalID) {
	p.globals = make(map[program.GlobalID]struct{}, len(globals))
	for _, g := range globals {
		p.globals[g] = struct{}{}
	}
}

// DropGlobal removes g and keeps later additions from claiming it again.
func (p *Partition) DropGlobal(g program.GlobalID) {
	delete(p.globals, g)
	p.dropped[g] = struct{}{}
}

// AddGlobalsTouchedBy claims the globals touched by fs, except dropped ones.
func (p *Partition) AddGlobalsTouchedBy(fs []program.FuncID) {
	if len(fs) == 0 {
		return
	}
	set := make(map[program.FuncID]struct{}, len(fs))
	for _, f := range fs {
		set[f] = struct{}{}
	}
	for _, g := range p.prog.GlobalsTouchedBy(func(f program.FuncID) bool {
		_, ok := set[f]
		return ok
	}) {
		if _, ok := p.dropped[g]; !ok {
			p.globals[g] = struct{}{}
		}
	}
}

// RefreshGlobals recomputes the referenced globals: a global is referenced
// when a dependence edge touching it has an endpoint inside a member.
func (p *Partition) RefreshGlobals() {
	p.SetGlobals(p.prog.GlobalsTouchedBy(p.Contains))
}

// AddRelated records f at level, keeping the minimum level seen.
func (p *Partition) AddRelated(f program.FuncID, level int) {
	if level < 0 {
		level = 0
	}
	if existing, ok := p.related[f]; ok && existing <= level {
		return
	}
	p.related[f] = level
}

// RemoveRelated forgets f.
func (p *Partition) RemoveRelated(f program.FuncID) {
	delete(p.related, f)
}

// RelatedLevel returns the level of f, if related.
func (p *Partition) RelatedLevel(f program.FuncID) (int, bool) {
	level, ok := p.related[f]
	return level, ok
}

// RelatedFunctions returns the related functions sorted by id.
func (p *Partition) RelatedFunctions() []program.FuncID {
	result := make([]program.FuncID, 0, len(p.related))
	for f := range p.related {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

func sortedFuncs(set map[program.FuncID]struct{}) []program.FuncID {
	result := make([]program.FuncID, 0, len(set))
	for f := range set {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
