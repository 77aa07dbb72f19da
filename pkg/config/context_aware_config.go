package config

import "strings"

// ContextAwareConfig wraps the base Config with the module being partitioned,
// so that the module's own packages count as partitionable code even when
// their path matches a dependency pattern.
type ContextAwareConfig struct {
	*Config
	RootPackage string // module path of the program being partitioned
}

// NewContextAwareConfig creates a context-aware config over the default
// configuration.
func NewContextAwareConfig(rootPackage string) (*ContextAwareConfig, error) {
	baseConfig, err := DefaultConfig()
	if err != nil {
		return nil, err
	}
	return WithRootPackage(baseConfig, rootPackage), nil
}

// WithRootPackage wraps an already loaded configuration.
func WithRootPackage(base *Config, rootPackage string) *ContextAwareConfig {
	return &ContextAwareConfig{
		Config:      base,
		RootPackage: rootPackage,
	}
}

// IsUserDefined checks if a package is user-defined, taking into account the project context.
// A package is user-defined if:
// 1. It's not a standard library package, AND
// 2. It's the root package or one of its subpackages, OR
// 3. No root package is set and the base config considers it user-defined
func (c *ContextAwareConfig) IsUserDefined(packagePath string) bool {
	if c.IsStandardLibrary(packagePath) {
		return false
	}

	if c.RootPackage != "" {
		return c.isLocalProjectPackage(packagePath)
	}

	return c.Config.IsUserDefined(packagePath)
}

// IsDependency checks if a package is a third-party dependency, excluding local project packages.
func (c *ContextAwareConfig) IsDependency(packagePath string) bool {
	if c.RootPackage != "" && c.isLocalProjectPackage(packagePath) {
		return false
	}
	return c.Config.IsDependency(packagePath)
}

// IsPartitionable reports whether functions of the package may be placed in
// a partition. Everything else becomes a declaration.
func (c *ContextAwareConfig) IsPartitionable(packagePath string) bool {
	return packagePath != "" && c.IsUserDefined(packagePath)
}

func (c *ContextAwareConfig) isLocalProjectPackage(packagePath string) bool {
	if c.RootPackage == "" {
		return false
	}
	// "main" packages outside a module are always local
	if packagePath == c.RootPackage || packagePath == "main" {
		return true
	}
	return strings.HasPrefix(packagePath, c.RootPackage+"/")
}

// GetRootPackage returns the root package for this context
func (c *ContextAwareConfig) GetRootPackage() string {
	return c.RootPackage
}

// SetRootPackage updates the root package for this context
func (c *ContextAwareConfig) SetRootPackage(rootPackage string) {
	c.RootPackage = rootPackage
}
