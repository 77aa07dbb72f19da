package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GetCurrentGoModule returns the Go module of dir by running 'go list -m'.
// An empty dir uses the working directory.
func GetCurrentGoModule(dir string) (string, error) {
	cmd := exec.Command("go", "list", "-m")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current module: %w", err)
	}

	module := strings.TrimSpace(string(output))
	if module == "" {
		return "", fmt.Errorf("no module found - not in a Go module directory")
	}

	return module, nil
}

// GenerateOutputFilename creates the report filename for a package, e.g.
// "enclave.partition.json" for module example.com/enclave and extension ".json"
func GenerateOutputFilename(module, packageSpec, ext string) (string, error) {
	var baseName string
	switch {
	case module != "":
		baseName = lastPathElement(module)
	case packageSpec == "." || packageSpec == "./" || packageSpec == "":
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		baseName = filepath.Base(wd)
	default:
		baseName = packageSpec
		if idx := strings.Index(baseName, "@"); idx != -1 {
			baseName = baseName[:idx]
		}
		baseName = lastPathElement(strings.TrimSuffix(baseName, "/..."))
	}

	baseName = SanitizeFileName(baseName)
	if baseName == "" || baseName == "." {
		baseName = "program"
	}
	return baseName + ".partition" + ext, nil
}

// SanitizeFileName replaces characters that are awkward in file names
func SanitizeFileName(name string) string {
	return strings.NewReplacer(" ", "-", "_", "-", ":", "-").Replace(name)
}

func lastPathElement(path string) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	return parts[len(parts)-1]
}
