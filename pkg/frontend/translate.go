package frontend

import (
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/config"
	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

// translator lowers SSA functions into a program. Functions of partitionable
// packages are defined with their dependence graph; everything they reference
// from other packages becomes a declaration.
type translator struct {
	logger *logrus.Logger
	config *config.ContextAwareConfig
	b      *program.Builder
	types  *typeConverter

	callees map[ssa.CallInstruction][]*ssa.Function
	funcs   map[*ssa.Function]program.FuncID
	names   map[string]bool
	globals map[*ssa.Global]program.GlobalID

	// per-function state
	nodes    map[ssa.Value]program.NodeID
	params   map[*ssa.Parameter]int
	freeVars map[*ssa.FreeVar]program.NodeID
	phis     []*ssa.Phi
}

func newTranslator(logger *logrus.Logger, cfg *config.ContextAwareConfig, graph *callgraph.Graph) *translator {
	t := &translator{
		logger:  logger,
		config:  cfg,
		b:       program.NewBuilder(),
		types:   newTypeConverter(),
		callees: make(map[ssa.CallInstruction][]*ssa.Function),
		funcs:   make(map[*ssa.Function]program.FuncID),
		names:   make(map[string]bool),
		globals: make(map[*ssa.Global]program.GlobalID),
	}
	for _, node := range graph.Nodes {
		if node == nil {
			continue
		}
		for _, edge := range node.Out {
			if edge.Site != nil && edge.Callee != nil && edge.Callee.Func != nil {
				t.callees[edge.Site] = append(t.callees[edge.Site], edge.Callee.Func)
			}
		}
	}
	for site, fns := range t.callees {
		t.callees[site] = sortFunctions(dedupeFunctions(fns))
	}
	return t
}

func (t *translator) translate(all map[*ssa.Function]bool) *program.Program {
	var defined []*ssa.Function
	for fn := range all {
		if t.partitionable(fn) {
			defined = append(defined, fn)
		}
	}
	sortFunctions(defined)
	t.logger.WithField("functions", len(defined)).Debug("Translating partitionable functions")

	for _, fn := range defined {
		t.define(fn)
	}
	for _, fn := range defined {
		t.body(fn)
	}
	return t.b.Build()
}

// partitionable reports whether fn is user code with a body. Uninstantiated
// generic functions are skipped; their instantiations are translated.
func (t *translator) partitionable(fn *ssa.Function) bool {
	if fn == nil || len(fn.Blocks) == 0 || fn.Pkg == nil {
		return false
	}
	if fn.TypeParams().Len() > 0 && len(fn.TypeArgs()) == 0 {
		return false
	}
	if isArtificial(fn) {
		return false
	}
	return t.config.IsPartitionable(fn.Pkg.Pkg.Path())
}

// isArtificial reports compiler-generated wrappers that do not correspond to
// user code.
func isArtificial(fn *ssa.Function) bool {
	return fn.Synthetic != "" && (strings.Contains(fn.Synthetic, "wrapper") ||
		strings.Contains(fn.Synthetic, "bound") ||
		strings.Contains(fn.Synthetic, "thunk"))
}

func (t *translator) uniqueName(fn *ssa.Function) string {
	name := fn.String()
	if !t.names[name] {
		t.names[name] = true
		return name
	}
	for i := 1; ; i++ {
		candidate := name + "#" + strconv.Itoa(i)
		if !t.names[candidate] {
			t.names[candidate] = true
			return candidate
		}
	}
}

func (t *translator) define(fn *ssa.Function) program.FuncID {
	params := make([]*program.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = t.types.convert(p.Type())
	}
	id := t.b.Define(t.uniqueName(fn), params...)
	for i, p := range fn.Params {
		t.b.SetParamName(id, i, p.Name())
	}
	t.b.SetResult(id, t.types.tupleType(fn.Signature.Results(), 0))
	t.b.SetPackage(id, fn.Pkg.Pkg.Path())
	t.b.SetSize(id, instructionCount(fn))
	if fn.Parent() == nil && fn.Name() == "main" && fn.Pkg.Pkg.Name() == "main" {
		t.b.SetEntry(id)
	}
	t.funcs[fn] = id
	return id
}

// function returns the id of fn, declaring it on first use when it is not
// partitionable.
func (t *translator) function(fn *ssa.Function) program.FuncID {
	if id, ok := t.funcs[fn]; ok {
		return id
	}
	id := t.b.Declare(t.uniqueName(fn), t.types.paramTypes(fn.Signature, 0)...)
	t.b.SetResult(id, t.types.tupleType(fn.Signature.Results(), 0))
	if fn.Pkg != nil {
		t.b.SetPackage(id, fn.Pkg.Pkg.Path())
	}
	if isArtificial(fn) {
		t.b.SetIntrinsic(id)
	}
	t.funcs[fn] = id
	return id
}

// global returns the id of a package variable of partitionable code.
func (t *translator) global(g *ssa.Global) (program.GlobalID, bool) {
	if id, ok := t.globals[g]; ok {
		return id, true
	}
	if g.Pkg == nil || !t.config.IsPartitionable(g.Pkg.Pkg.Path()) {
		return program.NoGlobal, false
	}
	elem := g.Type()
	if ptr, ok := elem.Underlying().(*types.Pointer); ok {
		elem = ptr.Elem()
	}
	id := t.b.Global(g.String(), t.types.convert(elem))
	t.globals[g] = id
	return id, true
}

func (t *translator) body(fn *ssa.Function) {
	f := t.funcs[fn]
	t.nodes = make(map[ssa.Value]program.NodeID)
	t.params = make(map[*ssa.Parameter]int, len(fn.Params))
	t.freeVars = make(map[*ssa.FreeVar]program.NodeID)
	t.phis = t.phis[:0]
	for i, p := range fn.Params {
		t.params[p] = i
	}

	loops := loopBlocks(fn)
	for _, block := range fn.DomPreorder() {
		for _, instr := range block.Instrs {
			t.instruction(f, instr, loops[block.Index])
		}
	}
	for _, phi := range t.phis {
		n := t.nodes[phi]
		for _, edge := range phi.Edges {
			t.b.Data(t.value(f, edge), n)
		}
	}
}

func (t *translator) instruction(f program.FuncID, instr ssa.Instruction, inLoop bool) {
	switch instr := instr.(type) {
	case *ssa.Call:
		t.nodes[instr] = t.call(f, instr, inLoop)
	case *ssa.Go:
		t.call(f, instr, inLoop)
	case *ssa.Defer:
		t.call(f, instr, inLoop)
	case *ssa.Store:
		t.store(f, instr.Val, instr.Addr)
	case *ssa.Return:
		t.ret(f, instr.Results)
	case *ssa.Phi:
		t.nodes[instr] = t.b.Instr(f)
		t.phis = append(t.phis, instr)
	case *ssa.UnOp:
		if instr.Op == token.MUL {
			t.nodes[instr] = t.b.Load(f, t.value(f, instr.X))
			return
		}
		t.nodes[instr] = t.derived(f, instr)
	case *ssa.MakeClosure:
		n := t.value(f, instr.Fn)
		for _, binding := range instr.Bindings {
			t.b.Data(t.value(f, binding), n)
		}
		t.nodes[instr] = n
	case *ssa.MapUpdate:
		t.b.Data(t.value(f, instr.Value), t.value(f, instr.Map))
	case *ssa.Send:
		t.b.Data(t.value(f, instr.X), t.value(f, instr.Chan))
	default:
		if v, ok := instr.(ssa.Value); ok {
			t.nodes[v] = t.derived(f, instr)
		}
	}
}

// derived adds an instruction node depending on all operands of v.
func (t *translator) derived(f program.FuncID, v ssa.Instruction) program.NodeID {
	n := t.b.Instr(f)
	for _, op := range v.Operands(nil) {
		if op != nil && *op != nil {
			t.b.Data(t.value(f, *op), n)
		}
	}
	return n
}

// value returns the node of an SSA value used in f.
func (t *translator) value(f program.FuncID, v ssa.Value) program.NodeID {
	switch v := v.(type) {
	case *ssa.Parameter:
		if i, ok := t.params[v]; ok {
			return t.b.FormalArg(f, i)
		}
		return program.NoNode
	case *ssa.Const:
		return t.b.Const(f)
	case *ssa.Global:
		if id, ok := t.global(v); ok {
			return t.b.GlobalNode(id)
		}
		return program.NoNode
	case *ssa.Function:
		return t.b.AddressOf(f, t.function(v))
	case *ssa.Builtin:
		return program.NoNode
	case *ssa.FreeVar:
		n, ok := t.freeVars[v]
		if !ok {
			n = t.b.Instr(f)
			t.freeVars[v] = n
		}
		return n
	}
	if n, ok := t.nodes[v]; ok {
		return n
	}
	return program.NoNode
}

func (t *translator) values(f program.FuncID, vs []ssa.Value) []program.NodeID {
	nodes := make([]program.NodeID, len(vs))
	for i, v := range vs {
		nodes[i] = t.value(f, v)
	}
	return nodes
}

// call lowers a call instruction and returns the node of its result. Calls
// through a parameter of the caller stay indirect so the callback rewrite can
// find them; dynamic calls become one call site per resolved target.
func (t *translator) call(f program.FuncID, instr ssa.CallInstruction, inLoop bool) program.NodeID {
	common := instr.Common()
	args := t.values(f, common.Args)
	mark := func(cs program.CallSiteID) program.NodeID {
		if inLoop {
			t.b.InLoop(cs)
		}
		return t.b.CallNode(cs)
	}

	if common.IsInvoke() {
		recv := t.value(f, common.Value)
		targets := t.callees[instr]
		if len(targets) == 0 {
			return mark(t.b.CallIndirect(f, t.types.signature(common.Signature()), recv, args...))
		}
		return t.join(f, targets, func(callee program.FuncID) program.NodeID {
			return mark(t.b.Call(f, callee, append([]program.NodeID{recv}, args...)...))
		})
	}

	if _, ok := common.Value.(*ssa.Builtin); ok {
		n := t.b.Instr(f)
		for _, a := range args {
			t.b.Data(a, n)
		}
		return n
	}
	if callee := common.StaticCallee(); callee != nil {
		return mark(t.b.Call(f, t.function(callee), args...))
	}
	if param, ok := common.Value.(*ssa.Parameter); ok {
		return mark(t.b.CallIndirect(f, t.types.signature(common.Signature()), t.value(f, param), args...))
	}

	fnValue := t.value(f, common.Value)
	targets := t.callees[instr]
	if len(targets) == 0 {
		return mark(t.b.CallIndirect(f, t.types.signature(common.Signature()), fnValue, args...))
	}
	return t.join(f, targets, func(callee program.FuncID) program.NodeID {
		return mark(t.b.Call(f, callee, args...))
	})
}

// join emits one call per target and merges their results.
func (t *translator) join(f program.FuncID, targets []*ssa.Function, emit func(program.FuncID) program.NodeID) program.NodeID {
	if len(targets) == 1 {
		return emit(t.function(targets[0]))
	}
	merged := t.b.Instr(f)
	for _, target := range targets {
		t.b.Data(emit(t.function(target)), merged)
	}
	return merged
}

// store lowers a store. Stores into a field or element of a package variable
// also reach the variable itself.
func (t *translator) store(f program.FuncID, val, addr ssa.Value) {
	n := t.b.Store(f, t.value(f, val), t.value(f, addr))
	if g := rootGlobal(addr); g != nil && g != addr {
		if id, ok := t.global(g); ok {
			t.b.Data(n, t.b.GlobalNode(id))
		}
	}
}

func rootGlobal(v ssa.Value) *ssa.Global {
	for {
		switch a := v.(type) {
		case *ssa.Global:
			return a
		case *ssa.FieldAddr:
			v = a.X
		case *ssa.IndexAddr:
			v = a.X
		default:
			return nil
		}
	}
}

func (t *translator) ret(f program.FuncID, results []ssa.Value) {
	switch len(results) {
	case 0:
		return
	case 1:
		t.b.Return(f, t.value(f, results[0]))
		return
	}
	tuple := t.b.Instr(f)
	for _, r := range results {
		t.b.Data(t.value(f, r), tuple)
	}
	t.b.Return(f, tuple)
}

func instructionCount(fn *ssa.Function) int {
	n := 0
	for _, b := range fn.Blocks {
		n += len(b.Instrs)
	}
	return n
}

func dedupeFunctions(fns []*ssa.Function) []*ssa.Function {
	seen := make(map[*ssa.Function]bool, len(fns))
	result := fns[:0]
	for _, fn := range fns {
		if !seen[fn] {
			seen[fn] = true
			result = append(result, fn)
		}
	}
	return result
}

func sortFunctions(fns []*ssa.Function) []*ssa.Function {
	sort.SliceStable(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}
