package frontend

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// FindModule returns the module path declared by the go.mod governing dir,
// searching parent directories. An empty dir means the working directory.
func FindModule(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for {
		path := filepath.Join(dir, "go.mod")
		data, err := os.ReadFile(path) // #nosec G304 - go.mod of the analyzed module
		if err == nil {
			return ParseModulePath(path, data)
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod found - not in a Go module directory")
		}
		dir = parent
	}
}

// ParseModulePath extracts the module path from go.mod contents.
func ParseModulePath(path string, data []byte) (string, error) {
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", fmt.Errorf("%s declares no module", path)
	}
	return f.Module.Mod.Path, nil
}
