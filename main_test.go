package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rogpeppe/go-internal/testenv"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/models"
)

const keystoreModule = "github.com/smith-xyz/golang-tee-partitioner/examples/keystore"

// buildBinary compiles the partitioner into a temporary directory
func buildBinary(t *testing.T) string {
	t.Helper()
	testenv.MustHaveGoBuild(t)
	binary := filepath.Join(t.TempDir(), "tee-partitioner")
	cmd := exec.Command(testenv.GoToolPath(t), "build", "-o", binary, ".")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return binary
}

func TestCLIKeystore(t *testing.T) {
	binary := buildBinary(t)

	cmd := exec.Command(binary,
		"-package", "./examples/keystore",
		"-annotations", "examples/keystore/annotations.json",
		"-optimize", "local,callbacks",
	)
	cmd.Stderr = os.Stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("Partitioning the keystore example failed: %v", err)
	}

	var report models.PartitionReport
	if err := json.Unmarshal(out, &report); err != nil {
		t.Fatalf("Expected a JSON report on stdout, got %v\n%s", err, out)
	}

	if report.ProgramInfo.Module != "github.com/smith-xyz/golang-tee-partitioner" {
		t.Errorf("Expected the enclosing module, got %s", report.ProgramInfo.Module)
	}
	secure := make(map[string]bool)
	for _, name := range report.Secure.Functions {
		secure[strings.TrimPrefix(name, keystoreModule+".")] = true
	}
	for _, want := range []string{"loadKey", "sign"} {
		if !secure[want] {
			t.Errorf("Expected %s in the secure partition, got %v", want, report.Secure.Functions)
		}
	}
	if secure["count"] {
		t.Error("Expected count to stay insecure")
	}

	// main passes sign as a callback, so the callbacks stage pulls it in
	var callbackMoves []string
	for _, st := range report.Optimization.Stages {
		if st.Name == "callbacks" {
			callbackMoves = st.Moved
		}
	}
	if len(callbackMoves) != 1 || callbackMoves[0] != keystoreModule+".main" {
		t.Errorf("Expected the callbacks stage to move main, got %v", callbackMoves)
	}

	var globals []string
	for _, g := range report.Secure.Globals {
		globals = append(globals, strings.TrimPrefix(g, keystoreModule+"."))
	}
	if len(globals) == 0 || globals[0] != "sealingKey" {
		t.Errorf("Expected sealingKey to be a secure global, got %v", report.Secure.Globals)
	}
	if len(report.Annotations.Unresolved) != 0 {
		t.Errorf("Expected every annotation to resolve, got %v", report.Annotations.Unresolved)
	}
}

func TestCLIOutputFiles(t *testing.T) {
	binary := buildBinary(t)
	workDir := t.TempDir()
	root, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(binary,
		"-package", filepath.Join(root, "examples", "keystore"),
		"-format", "markdown",
		"-dot", filepath.Join(workDir, "keystore.dot"),
		"-rewrite-callbacks",
		"-o",
	)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Partitioning failed: %v\n%s", err, out)
	}

	report, err := os.ReadFile(filepath.Join(workDir, "golang-tee-partitioner.partition.md"))
	if err != nil {
		t.Fatalf("Expected a markdown report: %v", err)
	}
	if !strings.Contains(string(report), "## Callbacks") {
		t.Errorf("Expected a callbacks section in the report")
	}
	dot, err := os.ReadFile(filepath.Join(workDir, "keystore.dot"))
	if err != nil {
		t.Fatalf("Expected a DOT file: %v", err)
	}
	if !strings.HasPrefix(string(dot), "digraph") {
		t.Errorf("Expected a digraph, got %q", string(dot))
	}
}

func TestCLIErrors(t *testing.T) {
	binary := buildBinary(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown format", args: []string{"-format", "pdf"}},
		{name: "unknown stage", args: []string{"-optimize", "anneal"}},
		{name: "unknown algorithm", args: []string{"-algo", "pointer"}},
		{name: "missing config", args: []string{"-config", "missing.toml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binary, append([]string{"-package", "./examples/keystore"}, tt.args...)...)
			if err := cmd.Run(); err == nil {
				t.Error("Expected a non-zero exit")
			}
		})
	}

	out, err := exec.Command(binary, "-version").Output()
	if err != nil {
		t.Fatalf("-version failed: %v", err)
	}
	if !strings.HasPrefix(string(out), "golang-tee-partitioner ") {
		t.Errorf("Expected the tool name, got %q", out)
	}
}
