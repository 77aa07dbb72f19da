package models

// OptimizationInfo describes what the optimization pipeline did
type OptimizationInfo struct {
	Stages         []StageInfo         `json:"stages"`
	Duplicated     []string            `json:"duplicated,omitempty"`
	SolverFailures []SolverFailureInfo `json:"solver_failures,omitempty"`
	CutEdges       []CutEdgeInfo       `json:"cut_edges,omitempty"`
}

// StageInfo is the outcome of one stage
type StageInfo struct {
	Name       string   `json:"name"`
	Moved      []string `json:"moved,omitempty"`
	Failed     bool     `json:"failed,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// SolverFailureInfo records a stage whose solver gave up
type SolverFailureInfo struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// CutEdgeInfo is an ILP edge decision
type CutEdgeInfo struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
	Cut    bool   `json:"cut"`
}

// CallbackInfo describes the callback boundary rewrite
type CallbackInfo struct {
	Handlers        []HandlerInfo   `json:"handlers"`
	Params          []CallbackParam `json:"params"`
	RedirectedCalls int             `json:"redirected_calls"`
	HandleArgs      int             `json:"handle_args"`
}

// HandlerInfo is a synthesized secure/insecure handler pair
type HandlerInfo struct {
	Signature string `json:"signature"`
	Secure    string `json:"secure"`
	Insecure  string `json:"insecure"`
}

// CallbackParam is a function-pointer parameter replaced by a handle
type CallbackParam struct {
	Function string `json:"function"`
	Param    int    `json:"param"`
	Handler  string `json:"handler"`
}
