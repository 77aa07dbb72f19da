package models

// CallGraphInfo contains weighted call graph statistics. Weights are strings
// because they may be infinite.
type CallGraphInfo struct {
	TotalFunctions   int        `json:"total_functions"`
	TotalEdges       int        `json:"total_edges"`
	ContextSwitches  string     `json:"static_context_switches"`
	BoundaryCalls    string     `json:"boundary_calls"`
	ArgsPassedAcross string     `json:"args_passed_across"`
	RecursiveGroups  [][]string `json:"recursive_groups,omitempty"`
	CallEdges        []CallEdge `json:"call_edges"`
}

// CallEdge represents a call relationship between functions
type CallEdge struct {
	Caller     string `json:"caller"`
	Callee     string `json:"callee"`
	CallNum    string `json:"call_num,omitempty"`
	Weight     string `json:"weight"`
	Crossing   bool   `json:"crossing"`
	NonCallUse bool   `json:"non_call_use,omitempty"`
}
