package models

// Partition names used in reports
const (
	PartitionSecure    = "secure"
	PartitionInsecure  = "insecure"
	PartitionBoth      = "both"
	PartitionUncovered = "none"
)

// PartitionInfo summarizes one side of the partition
type PartitionInfo struct {
	Name         string            `json:"name"`
	Size         int               `json:"size"`
	Percent      float64           `json:"percent"`
	TCBSize      int               `json:"tcb_size"`
	Functions    []string          `json:"functions"`
	InInterface  []string          `json:"in_interface"`
	OutInterface []string          `json:"out_interface"`
	Globals      []string          `json:"globals"`
	Related      []RelatedFunction `json:"related,omitempty"`
}

// RelatedFunction is a function reached from sensitive data and the number
// of call levels separating it from the annotated function
type RelatedFunction struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Function is a function of the program with its placement
type Function struct {
	Name         string      `json:"name"`
	Package      string      `json:"package,omitempty"`
	Signature    string      `json:"signature"`
	Parameters   []Parameter `json:"parameters,omitempty"`
	Size         int         `json:"size"`
	Partition    string      `json:"partition"`
	IsEntryPoint bool        `json:"is_entry_point,omitempty"`
	IsHandler    bool        `json:"is_handler,omitempty"`
	InInterface  bool        `json:"in_interface,omitempty"`
	OutInterface bool        `json:"out_interface,omitempty"`
	RelatedLevel *int        `json:"related_level,omitempty"`
}

// Parameter represents a function parameter
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
