package program

// AddFunction appends a synthesized function without dependence information
// and returns its id. Params and Result are taken from fn; the id is
// assigned here.
func (p *Program) AddFunction(fn Function) FuncID {
	f := &fn
	f.ID = FuncID(len(p.functions))
	f.hasDeps = false
	f.formals = make([]NodeID, len(f.Params))
	for i := range f.formals {
		f.formals[i] = NoNode
	}
	f.returns = nil
	if f.Result == nil {
		f.Result = Void
	}
	p.functions = append(p.functions, f)
	p.byName[f.Name] = f.ID

	f.node = NodeID(len(p.nodes))
	p.nodes = append(p.nodes, &Node{
		ID:          f.node,
		Kind:        NodeFunction,
		Func:        NoFunc,
		Target:      f.ID,
		Global:      NoGlobal,
		CallSite:    -1,
		StoredValue: NoNode,
	})
	p.out = append(p.out, nil)
	p.in = append(p.in, nil)
	return f.ID
}

// SetParamType replaces the type of parameter i of f, keeping the formal
// argument node in sync.
func (p *Program) SetParamType(f FuncID, i int, t *Type) {
	fn := p.Function(f)
	if fn == nil || i < 0 || i >= len(fn.Params) {
		return
	}
	fn.Params[i].Type = t
	if formal, ok := p.FormalArg(f, i); ok {
		p.nodes[formal].Type = t
	}
}

// RedirectCall turns cs into a direct call to target, passing handle as an
// extra leading argument. The call site index and the control edge to the
// target's function node are updated accordingly.
func (p *Program) RedirectCall(cs CallSiteID, target FuncID, handle NodeID) {
	site := p.CallSite(cs)
	if site == nil {
		return
	}
	if site.Callee != NoFunc {
		p.callsToCallee[site.Callee] = removeCallSite(p.callsToCallee[site.Callee], cs)
	}
	site.Callee = target
	site.CalleeParam = -1
	site.Signature = p.functions[target].Signature()
	site.Args = append([]NodeID{handle}, site.Args...)
	p.callsToCallee[target] = append(p.callsToCallee[target], cs)

	e := Edge{From: site.Node, To: p.functions[target].node, Kind: EdgeControl}
	p.out[e.From] = append(p.out[e.From], e)
	p.in[e.To] = append(p.in[e.To], e)
}

// MarkHandleArg records that argument i of cs is converted from a function
// address to a callback handle.
func (p *Program) MarkHandleArg(cs CallSiteID, i int) {
	site := p.CallSite(cs)
	if site == nil {
		return
	}
	for _, existing := range site.HandleArgs {
		if existing == i {
			return
		}
	}
	site.HandleArgs = append(site.HandleArgs, i)
}

func removeCallSite(ids []CallSiteID, target CallSiteID) []CallSiteID {
	result := ids[:0]
	for _, id := range ids {
		if id != target {
			result = append(result, id)
		}
	}
	return result
}
