package version

import (
	"strings"
	"testing"
)

func TestGetVersionWithCommit(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version = "v1.2.3"
	GitCommit = "unknown"
	if got := GetVersionWithCommit(); got != "v1.2.3" {
		t.Errorf("Expected v1.2.3, got %s", got)
	}

	GitCommit = "0123456789abcdef"
	if got := GetVersionWithCommit(); got != "v1.2.3 (0123456)" {
		t.Errorf("Expected v1.2.3 (0123456), got %s", got)
	}
}

func TestIsBeta(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	tests := []struct {
		version string
		beta    bool
	}{
		{"v0.1.0-beta", true},
		{"v1.0.0-rc1", true},
		{"v2.0.0-alpha.1", true},
		{"v1.0.0", false},
	}
	for _, tt := range tests {
		Version = tt.version
		if IsBeta() != tt.beta {
			t.Errorf("Expected IsBeta()=%v for %s", tt.beta, tt.version)
		}
		if IsProduction() == tt.beta {
			t.Errorf("Expected IsProduction()=%v for %s", !tt.beta, tt.version)
		}
	}
}

func TestGetFullVersionString(t *testing.T) {
	info := GetFullVersionString()
	if !strings.HasPrefix(info, ToolName+" ") {
		t.Errorf("Expected version string to start with %s, got %q", ToolName, info)
	}
	if !strings.Contains(info, "Platform: ") {
		t.Errorf("Expected platform in version string, got %q", info)
	}
}
