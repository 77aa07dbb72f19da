package partition

import (
	"github.com/sirupsen/logrus"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/utils"
)

// Propagator extends a partition from annotations by following sensitive data
// through the dependence graph.
type Propagator struct {
	prog   *program.Program
	logger *logrus.Logger

	// levels holds the boundary-hop distance of every function reached so
	// far from an annotated function. It only ever decreases.
	levels map[program.FuncID]int
}

// NewPropagator creates a propagator over prog.
func NewPropagator(logger *logrus.Logger, prog *program.Program) *Propagator {
	return &Propagator{
		prog:   prog,
		logger: utils.LoggerOrDiscard(logger),
		levels: make(map[program.FuncID]int),
	}
}

// Propagate applies every annotation to part. Strategies whose preconditions
// are not met are skipped.
func (p *Propagator) Propagate(part *Partition, annotations []Annotation) {
	for _, a := range annotations {
		p.propagateFunction(part, a)
		p.propagateArguments(part, a)
		p.propagateReturn(part, a)
	}
}

// Level returns the hop level recorded for f.
func (p *Propagator) Level(f program.FuncID) (int, bool) {
	level, ok := p.levels[f]
	return level, ok
}

func (p *Propagator) log(a Annotation) *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"function":   p.prog.Name(a.Function()),
		"annotation": a.Label(),
	})
}

func (p *Propagator) propagateFunction(part *Partition, a Annotation) {
	fn := p.prog.Function(a.Function())
	if fn == nil {
		p.log(a).Debug("skipping function annotation: function not in program")
		return
	}
	if fn.Declaration {
		p.log(a).Debug("skipping function annotation: declaration has no body to partition")
		return
	}
	p.seed(part, a.Function())
}

func (p *Propagator) propagateArguments(part *Partition, a Annotation) {
	if !a.HasArguments() {
		return
	}
	fn := p.prog.Function(a.Function())
	if fn == nil || fn.Declaration {
		return
	}
	for _, i := range a.Arguments() {
		if i < 0 || i >= len(fn.Params) {
			p.log(a).WithField("argument", i).Debug("skipping argument annotation: no such argument")
			return
		}
		if !fn.Params[i].Type.IsPointer() {
			p.log(a).WithField("argument", i).Debug("skipping argument annotation: argument is not a pointer")
			return
		}
	}
	if !p.prog.HasDependenceInfo(fn.ID) {
		p.log(a).Debug("skipping argument annotation: no dependence info")
		return
	}

	p.seed(part, fn.ID)
	t := p.newTraversal(part, fn.ID)
	for _, i := range a.Arguments() {
		if formal, ok := p.prog.FormalArg(fn.ID, i); ok {
			t.forward(formal)
		}
	}
	t.drainBackward()
}

func (p *Propagator) propagateReturn(part *Partition, a Annotation) {
	if !a.ReturnSensitive() {
		return
	}
	fn := p.prog.Function(a.Function())
	if fn == nil || fn.Declaration {
		return
	}
	if fn.Result.IsVoid() {
		p.log(a).Debug("skipping return annotation: function returns nothing")
		return
	}
	if !p.prog.HasDependenceInfo(fn.ID) {
		p.log(a).Debug("skipping return annotation: no dependence info")
		return
	}

	p.seed(part, fn.ID)
	t := p.newTraversal(part, fn.ID)
	for _, ret := range p.prog.ReturnNodes(fn.ID) {
		t.queueBackward(ret)
	}
	t.drainBackward()
}

func (p *Propagator) seed(part *Partition, f program.FuncID) {
	part.Add(f)
	p.levels[f] = 0
}

// traversal is a single worklist walk rooted at one annotated function.
type traversal struct {
	p        *Propagator
	part     *Partition
	root     program.FuncID
	forwardV map[program.NodeID]struct{}
	backV    map[program.NodeID]struct{}
	backward []program.NodeID
}

func (p *Propagator) newTraversal(part *Partition, root program.FuncID) *traversal {
	return &traversal{
		p:        p,
		part:     part,
		root:     root,
		forwardV: make(map[program.NodeID]struct{}),
		backV:    make(map[program.NodeID]struct{}),
	}
}

func (t *traversal) forward(start program.NodeID) {
	prog := t.p.prog
	if _, ok := t.forwardV[start]; ok {
		return
	}
	t.forwardV[start] = struct{}{}
	worklist := []program.NodeID{start}

	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]
		node := prog.Node(current)

		if node.Kind == program.NodeStore && node.StoredValue != program.NoNode {
			t.queueBackward(node.StoredValue)
		}

		for _, e := range prog.Out(current) {
			next := prog.Node(e.To)
			if next == nil || next.Kind == program.NodeConstant {
				continue
			}
			if e.Kind == program.EdgeParameter && !node.Type.IsPointer() {
				continue
			}
			t.updateLevel(node.Func, next.Func)

			if next.Kind == program.NodeFunction {
				t.recordRelated(node.Func, next.Target)
				continue
			}
			if e.Kind == program.EdgeParameter {
				t.recordRelated(node.Func, next.Func)
				t.part.Add(next.Func)
			}
			if _, ok := t.forwardV[e.To]; ok {
				continue
			}
			t.forwardV[e.To] = struct{}{}
			worklist = append(worklist, e.To)
		}
	}
}

func (t *traversal) queueBackward(n program.NodeID) {
	if _, ok := t.backV[n]; ok {
		return
	}
	t.backV[n] = struct{}{}
	t.backward = append(t.backward, n)
}

func (t *traversal) drainBackward() {
	prog := t.p.prog
	for len(t.backward) > 0 {
		current := t.backward[0]
		t.backward = t.backward[1:]
		node := prog.Node(current)

		for _, e := range prog.In(current) {
			prev := prog.Node(e.From)
			if prev == nil || prev.Kind == program.NodeConstant {
				continue
			}
			if e.Kind == program.EdgeParameter && !prev.Type.IsPointer() {
				continue
			}
			t.updateLevel(node.Func, prev.Func)

			if prev.Kind == program.NodeFunction {
				t.recordRelated(node.Func, prev.Target)
				continue
			}
			t.queueBackward(e.From)
		}
	}
}

// updateLevel propagates the level of from into to: same function keeps the
// level, crossing a function boundary adds one.
func (t *traversal) updateLevel(from, to program.FuncID) {
	if to == program.NoFunc {
		return
	}
	level, ok := t.p.levels[from]
	if !ok {
		return
	}
	if from != to {
		level++
	}
	if existing, ok := t.p.levels[to]; !ok || level < existing {
		t.p.levels[to] = level
	}
}

// recordRelated records target as related at one level past caller. Nothing
// is recorded when the caller level is unknown.
func (t *traversal) recordRelated(caller, target program.FuncID) {
	if target == t.root || target == program.NoFunc || t.p.prog.IsDeclaration(target) {
		return
	}
	level, ok := t.p.levels[caller]
	if !ok {
		return
	}
	t.part.AddRelated(target, level+1)
	if existing, ok := t.p.levels[target]; !ok || level+1 < existing {
		t.p.levels[target] = level + 1
	}
}
