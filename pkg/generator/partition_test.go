package generator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rogpeppe/go-internal/testenv"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/output"
)

const vaultSource = `package main

import "fmt"

var masterKey []byte

func store(k []byte) {
	masterKey = k
}

//tee:sensitive args=0
func Unseal(k []byte) {
	store(k)
}

func each(xs []int, f func(int) int) int {
	total := 0
	for _, x := range xs {
		total += f(x)
	}
	return total
}

func inc(x int) int { return x + 1 }

func main() {
	Unseal([]byte("k"))
	fmt.Println(each([]int{1, 2}, inc))
}
`

func createVaultModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":  "module example.com/vault\n\ngo 1.21\n",
		"main.go": vaultSource,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestGeneratePartition(t *testing.T) {
	testenv.MustHaveGoBuild(t)
	dir := createVaultModule(t)

	in, err := GeneratePartition(context.Background(), nil, Options{
		Package: dir,
		Stages:  []string{"local"},
	})
	if err != nil {
		t.Fatalf("GeneratePartition failed: %v", err)
	}

	if in.Module != "example.com/vault" {
		t.Errorf("Expected module example.com/vault, got %s", in.Module)
	}
	if in.Algorithm != "rta" {
		t.Errorf("Expected default algorithm rta, got %s", in.Algorithm)
	}
	if len(in.Annotations.Annotations) != 1 {
		t.Fatalf("Expected the directive to resolve, got %d annotations (unresolved %v)",
			len(in.Annotations.Annotations), in.Annotations.Unresolved)
	}

	prog := in.Partitions.Program()
	var secure []string
	for _, f := range in.Partitions.Secure.Members() {
		secure = append(secure, prog.Name(f))
	}
	sort.Strings(secure)
	if diff := cmp.Diff([]string{"example.com/vault.Unseal", "example.com/vault.store"}, secure); diff != "" {
		t.Errorf("Unexpected secure functions (-want +got):\n%s", diff)
	}

	var globals []string
	for _, g := range in.Partitions.Secure.Globals() {
		globals = append(globals, prog.Global(g).Name)
	}
	if diff := cmp.Diff([]string{"example.com/vault.masterKey"}, globals); diff != "" {
		t.Errorf("Unexpected secure globals (-want +got):\n%s", diff)
	}

	var phases []string
	for _, p := range in.Phases {
		phases = append(phases, p.Name)
	}
	if diff := cmp.Diff([]string{"load", "annotations", "partition", "weights", "optimize"}, phases); diff != "" {
		t.Errorf("Unexpected phases (-want +got):\n%s", diff)
	}
	if in.Rewrite != nil {
		t.Error("Expected no callback rewrite unless requested")
	}

	g, err := output.NewReportGenerator(nil, output.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	report := g.BuildReport(*in)
	if report.Secure.Size == 0 || report.Secure.Percent <= 0 || report.Secure.Percent >= 100 {
		t.Errorf("Expected a partial secure partition, got size %d (%.1f%%)", report.Secure.Size, report.Secure.Percent)
	}
}

func TestGeneratePartitionWithAnnotationFile(t *testing.T) {
	testenv.MustHaveGoBuild(t)
	dir := createVaultModule(t)
	annotationFile := filepath.Join(dir, "annotations.yaml")
	yaml := "- annotation: sensitive\n  functions:\n    - function: vault.inc\n      return: true\n    - function: missing\n"
	if err := os.WriteFile(annotationFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	in, err := GeneratePartition(context.Background(), nil, Options{
		Package:          dir,
		Algorithm:        "cha",
		AnnotationFiles:  []string{annotationFile},
		Stages:           []string{"local", "callbacks"},
		RewriteCallbacks: true,
	})
	if err != nil {
		t.Fatalf("GeneratePartition failed: %v", err)
	}

	if diff := cmp.Diff([]string{"missing"}, in.Annotations.Unresolved); diff != "" {
		t.Errorf("Unexpected unresolved annotations (-want +got):\n%s", diff)
	}
	if len(in.Annotations.Annotations) != 2 {
		t.Errorf("Expected file and directive annotations, got %d", len(in.Annotations.Annotations))
	}
	if in.Rewrite == nil || len(in.Rewrite.Handlers) != 1 {
		t.Fatalf("Expected one callback handler pair, got %+v", in.Rewrite)
	}
	if len(in.Rewrite.Params) != 1 || in.Partitions.Program().Name(in.Rewrite.Params[0].Func) != "example.com/vault.each" {
		t.Errorf("Expected each's callback parameter to be rewritten, got %+v", in.Rewrite.Params)
	}
}

func TestGeneratePartitionErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "unknown stage", opts: Options{Stages: []string{"anneal"}}},
		{name: "missing annotation file", opts: Options{AnnotationFiles: []string{"does-not-exist.json"}}},
		{name: "missing directory", opts: Options{Package: "./does/not/exist"}},
		{name: "unknown algorithm", opts: Options{Package: ".", Algorithm: "pointer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := GeneratePartition(context.Background(), nil, tt.opts); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestResolvePackageToDirectory(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		spec        string
		wantDir     string
		wantPattern string
		wantErr     bool
	}{
		{spec: "", wantPattern: "."},
		{spec: "./", wantPattern: "."},
		{spec: dir, wantDir: abs, wantPattern: "."},
		{spec: dir + "/...", wantDir: abs, wantPattern: "./..."},
		{spec: "example.com/vault/cmd", wantPattern: "example.com/vault/cmd"},
		{spec: "./missing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			gotDir, gotPattern, err := resolvePackageToDirectory(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if gotDir != tt.wantDir || gotPattern != tt.wantPattern {
				t.Errorf("Expected (%q, %q), got (%q, %q)", tt.wantDir, tt.wantPattern, gotDir, gotPattern)
			}
		})
	}
}
