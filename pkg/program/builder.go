package program

// Builder assembles a Program. It is used by the Go front-end and by tests to
// describe small programs by hand. A Builder must not be used after Build.
type Builder struct {
	prog  *Program
	edges map[Edge]struct{}
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		prog:  newProgram(),
		edges: make(map[Edge]struct{}),
	}
}

// Define adds a function with a body and dependence information.
func (b *Builder) Define(name string, params ...*Type) FuncID {
	return b.addFunction(name, params, false)
}

// Declare adds a function without a body.
func (b *Builder) Declare(name string, params ...*Type) FuncID {
	return b.addFunction(name, params, true)
}

func (b *Builder) addFunction(name string, params []*Type, declaration bool) FuncID {
	p := b.prog
	fn := &Function{
		ID:          FuncID(len(p.functions)),
		Name:        name,
		Result:      Void,
		Declaration: declaration,
		hasDeps:     !declaration,
	}
	p.functions = append(p.functions, fn)
	p.byName[name] = fn.ID

	fn.node = b.newNode(&Node{Kind: NodeFunction, Func: NoFunc, Target: fn.ID})
	for i, t := range params {
		fn.Params = append(fn.Params, Param{Type: t})
		formal := NoNode
		if !declaration {
			formal = b.newNode(&Node{Kind: NodeFormalArg, Func: fn.ID, ArgIndex: i, Type: t})
		}
		fn.formals = append(fn.formals, formal)
	}
	return fn.ID
}

// SetResult sets the result type of f.
func (b *Builder) SetResult(f FuncID, t *Type) {
	b.prog.functions[f].Result = t
}

// SetPackage records the package path of f.
func (b *Builder) SetPackage(f FuncID, pkg string) {
	b.prog.functions[f].Package = pkg
}

// SetParamName names parameter i of f.
func (b *Builder) SetParamName(f FuncID, i int, name string) {
	b.prog.functions[f].Params[i].Name = name
}

// SetEntry marks f as the program entry point.
func (b *Builder) SetEntry(f FuncID) {
	b.prog.functions[f].Entry = true
}

// SetIntrinsic marks f as a compiler intrinsic.
func (b *Builder) SetIntrinsic(f FuncID) {
	b.prog.functions[f].Intrinsic = true
}

// SetSize sets the instruction count of f.
func (b *Builder) SetSize(f FuncID, n int) {
	b.prog.functions[f].Size = n
}

// SetDependenceInfo overrides whether f carries dependence information.
func (b *Builder) SetDependenceInfo(f FuncID, ok bool) {
	b.prog.functions[f].hasDeps = ok
}

// Global adds a package-level variable.
func (b *Builder) Global(name string, t *Type) GlobalID {
	p := b.prog
	g := &Global{ID: GlobalID(len(p.globals)), Name: name, Type: t}
	p.globals = append(p.globals, g)
	g.node = b.newNode(&Node{Kind: NodeGlobal, Func: NoFunc, Target: NoFunc, Global: g.ID})
	return g.ID
}

// Instr adds an instruction node in f.
func (b *Builder) Instr(f FuncID) NodeID {
	return b.newNode(&Node{Kind: NodeInstruction, Func: f})
}

// Const adds a constant node in f. Traversals skip constants.
func (b *Builder) Const(f FuncID) NodeID {
	return b.newNode(&Node{Kind: NodeConstant, Func: f})
}

// Load adds an instruction in f that reads through addr.
func (b *Builder) Load(f FuncID, addr NodeID) NodeID {
	n := b.Instr(f)
	b.Data(addr, n)
	return n
}

// Store adds a store of value to addr in f.
func (b *Builder) Store(f FuncID, value, addr NodeID) NodeID {
	n := b.newNode(&Node{Kind: NodeStore, Func: f, StoredValue: value})
	b.Data(value, n)
	b.Data(n, addr)
	return n
}

// Return adds a return of value from f.
func (b *Builder) Return(f FuncID, value NodeID) NodeID {
	fn := b.prog.functions[f]
	n := b.newNode(&Node{Kind: NodeReturn, Func: f, Type: fn.Result})
	b.Data(value, n)
	fn.returns = append(fn.returns, n)
	return n
}

// AddressOf adds a node in user holding the address of target. This is a
// non-call use of target.
func (b *Builder) AddressOf(user, target FuncID) NodeID {
	n := b.newNode(&Node{Kind: NodeInstruction, Func: user, Type: FuncOf(b.prog.functions[target].Result, b.prog.functions[target].Signature().Params...)})
	b.Data(b.prog.functions[target].node, n)
	return n
}

// Call adds a direct call from caller to callee passing the given value
// nodes. A NoNode argument stands for an untracked value.
func (b *Builder) Call(caller, callee FuncID, args ...NodeID) CallSiteID {
	sig := b.prog.functions[callee].Signature()
	cs := b.newCallSite(caller, callee, -1, sig, args)
	site := b.prog.callSites[cs]
	b.Control(site.Node, b.prog.functions[callee].node)
	for i, actual := range site.Args {
		if formal, ok := b.prog.FormalArg(callee, i); ok {
			b.addEdge(Edge{From: actual, To: formal, Kind: EdgeParameter})
		}
	}
	return cs
}

// CallIndirect adds a call through the function value fn. When fn is one of
// the caller's formal arguments the call site records the parameter index.
func (b *Builder) CallIndirect(caller FuncID, sig *Signature, fn NodeID, args ...NodeID) CallSiteID {
	param := -1
	if node := b.prog.Node(fn); node != nil && node.Kind == NodeFormalArg && node.Func == caller {
		param = node.ArgIndex
	}
	cs := b.newCallSite(caller, NoFunc, param, sig, args)
	b.Data(fn, b.prog.callSites[cs].Node)
	return cs
}

func (b *Builder) newCallSite(caller, callee FuncID, param int, sig *Signature, args []NodeID) CallSiteID {
	p := b.prog
	id := CallSiteID(len(p.callSites))
	site := &CallSite{
		ID:          id,
		Caller:      caller,
		Callee:      callee,
		CalleeParam: param,
		Signature:   sig,
	}
	p.callSites = append(p.callSites, site)
	site.Node = b.newNode(&Node{Kind: NodeCall, Func: caller, CallSite: id})
	for i, value := range args {
		var t *Type
		if sig != nil && i < len(sig.Params) {
			t = sig.Params[i]
		} else if v := p.Node(value); v != nil {
			t = v.Type
		}
		actual := b.newNode(&Node{Kind: NodeActualArg, Func: caller, ArgIndex: i, Type: t, CallSite: id})
		if value != NoNode {
			b.Data(value, actual)
		}
		b.Data(actual, site.Node)
		site.Args = append(site.Args, actual)
	}
	p.callsInCaller[caller] = append(p.callsInCaller[caller], id)
	if callee != NoFunc {
		p.callsToCallee[callee] = append(p.callsToCallee[callee], id)
	}
	return id
}

// InLoop marks a call site as located in a loop body.
func (b *Builder) InLoop(cs CallSiteID) {
	b.prog.callSites[cs].InLoop = true
}

// Data adds a data dependence edge.
func (b *Builder) Data(from, to NodeID) {
	b.addEdge(Edge{From: from, To: to, Kind: EdgeData})
}

// Control adds a control dependence edge.
func (b *Builder) Control(from, to NodeID) {
	b.addEdge(Edge{From: from, To: to, Kind: EdgeControl})
}

// CallNode returns the node standing for the result of call site cs.
func (b *Builder) CallNode(cs CallSiteID) NodeID {
	return b.prog.callSites[cs].Node
}

// FormalArg returns the formal argument node of f at i.
func (b *Builder) FormalArg(f FuncID, i int) NodeID {
	n, _ := b.prog.FormalArg(f, i)
	return n
}

// FunctionNode returns the node denoting f.
func (b *Builder) FunctionNode(f FuncID) NodeID {
	return b.prog.FunctionNode(f)
}

// GlobalNode returns the node denoting g.
func (b *Builder) GlobalNode(g GlobalID) NodeID {
	return b.prog.GlobalNode(g)
}

// Build links callee returns to their call sites and returns the program.
func (b *Builder) Build() *Program {
	p := b.prog
	for _, site := range p.callSites {
		if site.Callee == NoFunc {
			continue
		}
		for _, ret := range p.functions[site.Callee].returns {
			b.Data(ret, site.Node)
		}
	}
	return p
}

func (b *Builder) newNode(n *Node) NodeID {
	p := b.prog
	n.ID = NodeID(len(p.nodes))
	if n.Kind != NodeFunction {
		n.Target = NoFunc
	}
	if n.Kind != NodeGlobal {
		n.Global = NoGlobal
	}
	if n.Kind != NodeStore {
		n.StoredValue = NoNode
	}
	if n.Kind != NodeActualArg && n.Kind != NodeCall {
		n.CallSite = -1
	}
	p.nodes = append(p.nodes, n)
	p.out = append(p.out, nil)
	p.in = append(p.in, nil)
	return n.ID
}

func (b *Builder) addEdge(e Edge) {
	if e.From == NoNode || e.To == NoNode {
		return
	}
	if _, ok := b.edges[e]; ok {
		return
	}
	b.edges[e] = struct{}{}
	b.prog.out[e.From] = append(b.prog.out[e.From], e)
	b.prog.in[e.To] = append(b.prog.in[e.To], e)
}
