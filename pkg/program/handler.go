package program

// HandlerBody describes a synthesized callback handler. A handler receives a
// handle for a callback followed by the callback's own arguments. It resolves
// the handle and calls the target directly when the target lives on its side
// of the boundary; otherwise it forwards exactly once to its peer.
type HandlerBody struct {
	Secure    bool
	Peer      FuncID
	Signature *Signature
}

// Dispatch returns the functions invoked, in order, when the handler resolves
// a handle to target. resident reports whether a function lives on the
// handler's side.
func (h *HandlerBody) Dispatch(target FuncID, resident func(FuncID) bool) []FuncID {
	if resident(target) {
		return []FuncID{target}
	}
	return []FuncID{h.Peer, target}
}

// Side names the partition the handler belongs to.
func (h *HandlerBody) Side() string {
	if h.Secure {
		return "secure"
	}
	return "insecure"
}
