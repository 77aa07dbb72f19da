package models

// PartitionReport is the complete result of partitioning a program
type PartitionReport struct {
	ReportVersion string           `json:"report_version"`
	CreationInfo  CreationInfo     `json:"creation_info"`
	ProgramInfo   ProgramInfo      `json:"program_info"`
	Annotations   AnnotationInfo   `json:"annotations"`
	Secure        PartitionInfo    `json:"secure"`
	Insecure      PartitionInfo    `json:"insecure"`
	Functions     []Function       `json:"functions"`
	CallGraph     CallGraphInfo    `json:"call_graph"`
	Optimization  OptimizationInfo `json:"optimization"`
	Callbacks     *CallbackInfo    `json:"callbacks,omitempty"`
	Phases        []PhaseTiming    `json:"phases,omitempty"`
}

// CreationInfo contains metadata about report generation
type CreationInfo struct {
	Created     string `json:"created"`
	ToolName    string `json:"tool_name"`
	ToolVersion string `json:"tool_version"`
	Algorithm   string `json:"call_graph_algorithm"`
}

// ProgramInfo describes the partitioned program
type ProgramInfo struct {
	Module       string `json:"module"`
	Functions    int    `json:"functions"`
	Defined      int    `json:"defined"`
	Declarations int    `json:"declarations"`
	Globals      int    `json:"globals"`
	CallSites    int    `json:"call_sites"`
	Size         int    `json:"size"`
}

// AnnotationInfo lists the annotations the partition was seeded from
type AnnotationInfo struct {
	Resolved   []Annotation `json:"resolved"`
	Unresolved []string     `json:"unresolved,omitempty"`
}

// Annotation is one resolved annotation
type Annotation struct {
	Function  string `json:"function"`
	Label     string `json:"label"`
	Arguments []int  `json:"arguments,omitempty"`
	Return    bool   `json:"return,omitempty"`
}

// PhaseTiming records how long a generation phase took
type PhaseTiming struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"duration_ms"`
}
