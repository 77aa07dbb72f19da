// Package program is the arena-indexed program representation the partitioner
// works on: functions, call sites, globals and a dependence graph over value
// nodes. It is produced by the Go front-end or by Builder in tests.
package program

import "sort"

type (
	FuncID     int
	NodeID     int
	GlobalID   int
	CallSiteID int
)

const (
	NoFunc   FuncID   = -1
	NoNode   NodeID   = -1
	NoGlobal GlobalID = -1
)

// Function is a function of the program. Declarations have no body and can
// never be partitioned.
type Function struct {
	ID          FuncID
	Name        string
	Package     string
	Params      []Param
	Result      *Type
	Declaration bool
	Intrinsic   bool
	Entry       bool
	Size        int

	// Handler is set on synthesized callback handlers.
	Handler *HandlerBody

	hasDeps bool
	node    NodeID
	formals []NodeID
	returns []NodeID
}

// Param is a formal parameter.
type Param struct {
	Name string
	Type *Type
}

// Signature returns the function's type shape.
func (f *Function) Signature() *Signature {
	params := make([]*Type, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return &Signature{Params: params, Result: f.Result}
}

// CallSite is a call instruction. Callee is NoFunc for indirect calls; when
// the call goes through one of the caller's own parameters CalleeParam holds
// its index, otherwise -1.
type CallSite struct {
	ID          CallSiteID
	Caller      FuncID
	Callee      FuncID
	CalleeParam int
	Signature   *Signature
	Args        []NodeID
	InLoop      bool
	Node        NodeID

	// HandleArgs lists argument positions converted from a function address
	// to a callback handle at this call site.
	HandleArgs []int
}

// Global is a package-level variable.
type Global struct {
	ID   GlobalID
	Name string
	Type *Type
	node NodeID
}

// NodeKind classifies dependence graph nodes.
type NodeKind int

const (
	NodeInstruction NodeKind = iota
	NodeFormalArg
	NodeActualArg
	NodeStore
	NodeReturn
	NodeCall
	NodeGlobal
	NodeFunction
	NodeConstant
)

var nodeKindNames = [...]string{
	NodeInstruction: "instruction",
	NodeFormalArg:   "formal_arg",
	NodeActualArg:   "actual_arg",
	NodeStore:       "store",
	NodeReturn:      "return",
	NodeCall:        "call",
	NodeGlobal:      "global",
	NodeFunction:    "function",
	NodeConstant:    "constant",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is a value in the dependence graph. Func is the enclosing function
// (NoFunc for global and function nodes). Target is the function a function
// node denotes; Global the variable a global node denotes. ArgIndex and Type
// describe argument nodes; CallSite links actual arguments and call nodes to
// their call. StoredValue is the value written by a store.
type Node struct {
	ID          NodeID
	Kind        NodeKind
	Func        FuncID
	Target      FuncID
	Global      GlobalID
	ArgIndex    int
	Type        *Type
	CallSite    CallSiteID
	StoredValue NodeID
}

// EdgeKind distinguishes dependence edges.
type EdgeKind int

const (
	// EdgeData is a def-use or memory dependence.
	EdgeData EdgeKind = iota
	// EdgeControl links call nodes to the function they invoke.
	EdgeControl
	// EdgeParameter links an actual argument to the callee's formal.
	EdgeParameter
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeData:
		return "data"
	case EdgeControl:
		return "control"
	case EdgeParameter:
		return "parameter"
	}
	return "unknown"
}

// Edge is a directed dependence edge.
type Edge struct {
	From NodeID
	To   NodeID
	Kind EdgeKind
}

// Program is the immutable-by-convention program graph. The callback
// rewriter is the only component that mutates it, through the methods in
// mutate.go.
type Program struct {
	functions []*Function
	globals   []*Global
	callSites []*CallSite
	nodes     []*Node
	out       [][]Edge
	in        [][]Edge

	byName        map[string]FuncID
	callsToCallee map[FuncID][]CallSiteID
	callsInCaller map[FuncID][]CallSiteID
}

func newProgram() *Program {
	return &Program{
		byName:        make(map[string]FuncID),
		callsToCallee: make(map[FuncID][]CallSiteID),
		callsInCaller: make(map[FuncID][]CallSiteID),
	}
}

// NumFunctions returns the number of functions, declarations included.
func (p *Program) NumFunctions() int { return len(p.functions) }

// Function returns the function with the given id.
func (p *Program) Function(id FuncID) *Function {
	if id < 0 || int(id) >= len(p.functions) {
		return nil
	}
	return p.functions[id]
}

// Functions returns every function in id order.
func (p *Program) Functions() []*Function {
	return p.functions
}

// Defined returns the ids of all functions with a body.
func (p *Program) Defined() []FuncID {
	var ids []FuncID
	for _, f := range p.functions {
		if !f.Declaration {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// Lookup finds a function by its full name.
func (p *Program) Lookup(name string) (FuncID, bool) {
	id, ok := p.byName[name]
	return id, ok
}

// Name returns the name of f, or "" for an unknown id.
func (p *Program) Name(id FuncID) string {
	if f := p.Function(id); f != nil {
		return f.Name
	}
	return ""
}

// IsDeclaration reports whether f has no body.
func (p *Program) IsDeclaration(id FuncID) bool {
	f := p.Function(id)
	return f == nil || f.Declaration
}

// HasDependenceInfo reports whether dependence nodes were built for f.
func (p *Program) HasDependenceInfo(id FuncID) bool {
	f := p.Function(id)
	return f != nil && f.hasDeps
}

// Globals returns every global in id order.
func (p *Program) Globals() []*Global {
	return p.globals
}

// Global returns the global with the given id.
func (p *Program) Global(id GlobalID) *Global {
	if id < 0 || int(id) >= len(p.globals) {
		return nil
	}
	return p.globals[id]
}

// CallSites returns every call site in id order.
func (p *Program) CallSites() []*CallSite {
	return p.callSites
}

// CallSite returns the call site with the given id.
func (p *Program) CallSite(id CallSiteID) *CallSite {
	if id < 0 || int(id) >= len(p.callSites) {
		return nil
	}
	return p.callSites[id]
}

// CallSitesOf returns the call sites whose resolved callee is f.
func (p *Program) CallSitesOf(f FuncID) []*CallSite {
	ids := p.callsToCallee[f]
	result := make([]*CallSite, len(ids))
	for i, id := range ids {
		result[i] = p.callSites[id]
	}
	return result
}

// CallSitesIn returns the call sites located in the body of f.
func (p *Program) CallSitesIn(f FuncID) []*CallSite {
	ids := p.callsInCaller[f]
	result := make([]*CallSite, len(ids))
	for i, id := range ids {
		result[i] = p.callSites[id]
	}
	return result
}

// Node returns the dependence node with the given id.
func (p *Program) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(p.nodes) {
		return nil
	}
	return p.nodes[id]
}

// NumNodes returns the size of the dependence graph.
func (p *Program) NumNodes() int { return len(p.nodes) }

// Out returns the outgoing edges of n.
func (p *Program) Out(n NodeID) []Edge {
	if n < 0 || int(n) >= len(p.out) {
		return nil
	}
	return p.out[n]
}

// In returns the incoming edges of n.
func (p *Program) In(n NodeID) []Edge {
	if n < 0 || int(n) >= len(p.in) {
		return nil
	}
	return p.in[n]
}

// NodeFunction returns the function enclosing n, or NoFunc.
func (p *Program) NodeFunction(n NodeID) FuncID {
	if node := p.Node(n); node != nil {
		return node.Func
	}
	return NoFunc
}

// FormalArg returns the formal argument node of f at position i.
func (p *Program) FormalArg(f FuncID, i int) (NodeID, bool) {
	fn := p.Function(f)
	if fn == nil || i < 0 || i >= len(fn.formals) {
		return NoNode, false
	}
	return fn.formals[i], fn.formals[i] != NoNode
}

// ReturnNodes returns the return nodes of f.
func (p *Program) ReturnNodes(f FuncID) []NodeID {
	if fn := p.Function(f); fn != nil {
		return fn.returns
	}
	return nil
}

// FunctionNode returns the node denoting f's address.
func (p *Program) FunctionNode(f FuncID) NodeID {
	if fn := p.Function(f); fn != nil {
		return fn.node
	}
	return NoNode
}

// GlobalNode returns the node denoting g.
func (p *Program) GlobalNode(g GlobalID) NodeID {
	if gl := p.Global(g); gl != nil {
		return gl.node
	}
	return NoNode
}

// AddressUsers returns the functions that use f's address as data rather than
// as a direct callee, sorted by id.
func (p *Program) AddressUsers(f FuncID) []FuncID {
	seen := make(map[FuncID]struct{})
	for _, e := range p.Out(p.FunctionNode(f)) {
		if e.Kind != EdgeData {
			continue
		}
		if user := p.NodeFunction(e.To); user != NoFunc {
			seen[user] = struct{}{}
		}
	}
	users := make([]FuncID, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// GlobalsTouchedBy returns the globals that have a dependence edge to or from
// a node for which inside(enclosing function) holds.
func (p *Program) GlobalsTouchedBy(inside func(FuncID) bool) []GlobalID {
	var result []GlobalID
	for _, g := range p.globals {
		if p.globalTouched(g.node, inside) {
			result = append(result, g.ID)
		}
	}
	return result
}

func (p *Program) globalTouched(n NodeID, inside func(FuncID) bool) bool {
	for _, e := range p.Out(n) {
		if f := p.NodeFunction(e.To); f != NoFunc && inside(f) {
			return true
		}
	}
	for _, e := range p.In(n) {
		if f := p.NodeFunction(e.From); f != NoFunc && inside(f) {
			return true
		}
	}
	return false
}

// GlobalUsers returns the functions with a dependence edge touching g.
func (p *Program) GlobalUsers(g GlobalID) []FuncID {
	seen := make(map[FuncID]struct{})
	n := p.GlobalNode(g)
	for _, e := range p.Out(n) {
		if f := p.NodeFunction(e.To); f != NoFunc {
			seen[f] = struct{}{}
		}
	}
	for _, e := range p.In(n) {
		if f := p.NodeFunction(e.From); f != NoFunc {
			seen[f] = struct{}{}
		}
	}
	users := make([]FuncID, 0, len(seen))
	for f := range seen {
		users = append(users, f)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
