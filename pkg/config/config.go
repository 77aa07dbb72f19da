package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Embedded default configuration
// Use 'go generate ./pkg/config' to update from root config.toml
//
//go:generate cp ../../config.toml default_config.toml
//go:embed default_config.toml
var embeddedConfigData []byte

// Config holds the application configuration.
type Config struct {
	Packages    PackageConfig    `toml:"packages"`
	Weights     WeightsConfig    `toml:"weights"`
	ILP         ILPConfig        `toml:"ilp"`
	Solver      SolverConfig     `toml:"solver"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Annotations AnnotationConfig `toml:"annotations"`
}

// PackageConfig holds package classification patterns. Functions outside
// user-defined packages are treated as declarations and never partitioned.
type PackageConfig struct {
	StdlibPatterns     []string `toml:"stdlib_patterns"`
	StdlibPrefixes     []string `toml:"stdlib_prefixes"`
	DependencyPatterns []string `toml:"dependency_patterns"`
	VendorPatterns     []string `toml:"vendor_patterns"`
}

// WeightsConfig holds the call graph cost model coefficients.
type WeightsConfig struct {
	LoopCost          float64 `toml:"loop_cost"`
	SensitiveCoef     float64 `toml:"sensitive_coef"`
	RelatedCoef       float64 `toml:"related_coef"`
	SizeCoef          float64 `toml:"size_coef"`
	CallNumCoef       float64 `toml:"call_num_coef"`
	ArgNumCoef        float64 `toml:"arg_num_coef"`
	ArgComplexityCoef float64 `toml:"arg_complexity_coef"`
	RetComplexityCoef float64 `toml:"ret_complexity_coef"`
}

// ILPConfig holds the objective parameters of the exact optimizer.
type ILPConfig struct {
	RelatedReward float64 `toml:"related_reward"`
	SizePenalty   float64 `toml:"size_penalty"`
	InfinityCap   float64 `toml:"infinity_cap"`
	ExportModel   string  `toml:"export_model"`
}

// SolverConfig bounds the built-in branch-and-bound solver.
type SolverConfig struct {
	MaxNodes     int     `toml:"max_nodes"`
	MaxVariables int     `toml:"max_variables"`
	Tolerance    float64 `toml:"tolerance"`
}

// PipelineConfig lists the optimization stages or presets to run.
type PipelineConfig struct {
	Stages []string `toml:"stages"`
}

// AnnotationConfig controls source directive scanning.
type AnnotationConfig struct {
	DirectivePrefix string `toml:"directive_prefix"`
	DefaultLabel    string `toml:"default_label"`
	ScanDirectives  bool   `toml:"scan_directives"`
}

// DefaultConfig returns the default configuration with optional local overrides.
// It always starts with the embedded config, then optionally merges with local config.toml.
func DefaultConfig() (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	// Look for local config.toml to override defaults
	localConfigPaths := []string{
		"config.toml",       // Current directory (project root when running binary)
		"../config.toml",    // Parent directory (for tests in subdirs)
		"../../config.toml", // Two levels up (for tests in pkg/*/test)
	}

	for _, path := range localConfigPaths {
		if _, err := os.Stat(path); err == nil {
			localConfig, err := LoadFromFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load local config %s: %v\n", path, err)
				break
			}
			// Local file replaces the embedded defaults wholesale
			return localConfig, nil
		}
	}

	return &config, nil
}

// LoadFromFile loads configuration from a TOML file. Sections the file omits
// keep their embedded defaults.
func LoadFromFile(filepath string) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(embeddedConfigData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}
	md, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", filepath, strings.Join(keys, ", "))
	}
	return &config, nil
}

// IsStandardLibrary checks if a package is from the Go standard library.
func (c *Config) IsStandardLibrary(packagePath string) bool {
	for _, pattern := range c.Packages.StdlibPatterns {
		if packagePath == pattern || strings.HasPrefix(packagePath, pattern+"/") {
			return true
		}
	}

	for _, prefix := range c.Packages.StdlibPrefixes {
		if strings.HasPrefix(packagePath, prefix) {
			return true
		}
	}

	return false
}

// IsDependency checks if a package is a third-party dependency.
func (c *Config) IsDependency(packagePath string) bool {
	for _, pattern := range c.Packages.VendorPatterns {
		if strings.HasPrefix(packagePath, pattern) {
			return true
		}
	}

	for _, pattern := range c.Packages.DependencyPatterns {
		if strings.HasPrefix(packagePath, pattern) {
			return true
		}
	}

	return false
}

// IsUserDefined checks if a package is user-defined (not stdlib or dependency).
func (c *Config) IsUserDefined(packagePath string) bool {
	return !c.IsStandardLibrary(packagePath) && !c.IsDependency(packagePath)
}
