package annotations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/smith-xyz/golang-tee-partitioner/pkg/program"
)

const jsonAnnotations = `[
  {
    "annotation": "sensitive",
    "functions": [
      {"function": "example.com/app/crypto.Sign", "arguments": [0, 1]},
      {"function": "Decrypt", "return": true}
    ]
  }
]`

const yamlAnnotations = `
- annotation: sensitive
  functions:
    - function: example.com/app/crypto.Sign
      arguments: [0, 1]
    - function: Decrypt
      return: true
`

func TestParseFormats(t *testing.T) {
	want := []Entry{{
		Annotation: "sensitive",
		Functions: []FunctionSpec{
			{Function: "example.com/app/crypto.Sign", Arguments: []int{0, 1}},
			{Function: "Decrypt", Return: true},
		},
	}}

	tests := []struct {
		name  string
		parse func([]byte) ([]Entry, error)
		input string
	}{
		{"json", ParseJSON, jsonAnnotations},
		{"yaml", ParseYAML, yamlAnnotations},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Unexpected entries (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", `[{"annotation": }]`},
		{"missing label", `[{"functions": [{"function": "F"}]}]`},
		{"missing function name", `[{"annotation": "s", "functions": [{"arguments": [0]}]}]`},
		{"negative argument", `[{"annotation": "s", "functions": [{"function": "F", "arguments": [-1]}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJSON([]byte(tt.input)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "annotations.json")
	yamlPath := filepath.Join(dir, "annotations.yml")
	if err := os.WriteFile(jsonPath, []byte(jsonAnnotations), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(yamlAnnotations), 0o600); err != nil {
		t.Fatal(err)
	}

	fromJSON, err := LoadFile(jsonPath)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	fromYAML, err := LoadFile(yamlPath)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Errorf("Expected both formats to agree (-json +yaml):\n%s", diff)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		line    string
		want    Directive
		ok      bool
		wantErr bool
	}{
		{line: "//tee:sensitive", want: Directive{Label: "sensitive"}, ok: true},
		{line: "//tee:secret args=0,2 return", want: Directive{Label: "secret", Arguments: []int{0, 2}, Return: true}, ok: true},
		{line: "  //tee: return", want: Directive{Label: DefaultLabel, Return: true}, ok: true},
		{line: "//tee:args=1", want: Directive{Label: DefaultLabel, Arguments: []int{1}}, ok: true},
		{line: "// tee:sensitive", ok: false},
		{line: "//go:noinline", ok: false},
		{line: "//tee:sensitive args=x", ok: true, wantErr: true},
		{line: "//tee:sensitive bogus", ok: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok, err := ParseDirective(tt.line, DefaultPrefix, DefaultLabel)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if diff := cmp.Diff(tt.want, got); !tt.wantErr && diff != "" {
				t.Errorf("Unexpected directive (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEntriesGroupByLabel(t *testing.T) {
	found := map[string][]Directive{
		"a.F": {{Label: "sensitive", Arguments: []int{0}}},
		"a.G": {{Label: "secret"}},
		"a.H": {{Label: "sensitive", Return: true}},
	}
	got := Entries(found, []string{"a.F", "a.G", "a.H"})
	want := []Entry{
		{Annotation: "sensitive", Functions: []FunctionSpec{
			{Function: "a.F", Arguments: []int{0}},
			{Function: "a.H", Return: true},
		}},
		{Annotation: "secret", Functions: []FunctionSpec{{Function: "a.G"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unexpected entries (-want +got):\n%s", diff)
	}
}

func resolverProgram() (*program.Program, program.FuncID, program.FuncID) {
	b := program.NewBuilder()
	main := b.Define("example.com/app.main")
	sign := b.Define("example.com/app/crypto.Sign", program.Int, program.Int)
	decrypt := b.Define("example.com/app/crypto.Decrypt")
	b.Define("example.com/app/store.Open")
	b.Define("example.com/app/cache.Open")
	b.SetEntry(main)
	return b.Build(), sign, decrypt
}

func TestResolverLookup(t *testing.T) {
	prog, sign, decrypt := resolverProgram()
	r := NewResolver(nil, prog)

	tests := []struct {
		name    string
		want    program.FuncID
		wantErr error
	}{
		{"example.com/app/crypto.Sign", sign, nil},
		{"crypto.Decrypt", decrypt, nil},
		{"Decrypt", decrypt, nil},
		{"Open", program.NoFunc, ErrAmbiguousFunction},
		{"Missing", program.NoFunc, ErrUnknownFunction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Lookup(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestResolveSkipsUnknown(t *testing.T) {
	prog, sign, decrypt := resolverProgram()
	entries, err := ParseJSON([]byte(jsonAnnotations))
	if err != nil {
		t.Fatal(err)
	}
	extra := []Entry{{Annotation: "sensitive", Functions: []FunctionSpec{
		{Function: "Missing"},
		{Function: "Sign", Arguments: []int{1}},
	}}}

	result := NewResolver(nil, prog).Resolve(entries, extra)
	if diff := cmp.Diff([]string{"Missing"}, result.Unresolved); diff != "" {
		t.Errorf("Unexpected unresolved names (-want +got):\n%s", diff)
	}
	if len(result.Annotations) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(result.Annotations))
	}

	first := result.Annotations[0]
	if first.Function() != sign || first.ReturnSensitive() {
		t.Errorf("Expected Sign without return annotation, got %d", first.Function())
	}
	if diff := cmp.Diff([]int{0, 1}, first.Arguments()); diff != "" {
		t.Errorf("Unexpected merged arguments (-want +got):\n%s", diff)
	}
	second := result.Annotations[1]
	if second.Function() != decrypt || !second.ReturnSensitive() || second.Label() != "sensitive" {
		t.Errorf("Expected Decrypt with a sensitive return, got %d", second.Function())
	}
}
