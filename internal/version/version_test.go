package version

import (
	"strings"
	"testing"
)

func TestInfoToleratesShortCommit(t *testing.T) {
	origVersion, origBuildTime, origCommit := Version, BuildTime, GitCommit
	defer func() {
		Version, BuildTime, GitCommit = origVersion, origBuildTime, origCommit
	}()

	tests := []struct {
		name   string
		commit string
	}{
		{"short commit", "abc"},
		{"empty commit", ""},
		{"full commit", "0123456789abcdef0123456789abcdef01234567"},
	}

	for _, tt := range tests {
		Version = "v1.0.0"
		BuildTime = "2026-01-02T03:04:05Z"
		GitCommit = tt.commit

		got := Info()
		if !strings.Contains(got, "v1.0.0") {
			t.Errorf("%s: Info() = %q; want version included", tt.name, got)
		}
		if len(tt.commit) > 8 && !strings.Contains(got, tt.commit[:8]) {
			t.Errorf("%s: Info() = %q; want truncated commit included", tt.name, got)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1       string
		v2       string
		expected int
	}{
		{"v1.0.542", "v1.0.533", 1},
		{"v1.0.533", "v1.0.542", -1},
		{"1.0.542", "1.0.542", 0},
		{"v1.0.542", "1.0.542", 0},
		{"v1.0.10", "v1.0.2", 1},
		{"v1.0.2", "v1.0.10", -1},
		{"dev", "v1.0.0", -1},
		{"v1.0.0", "dev", 1},
		{"v1.2", "v1.2.0", 0},
	}

	for _, tt := range tests {
		result := CompareVersions(tt.v1, tt.v2)
		if result != tt.expected {
			t.Errorf("CompareVersions(%s, %s) = %d; want %d", tt.v1, tt.v2, result, tt.expected)
		}
	}
}

func TestIsUpdateAvailable(t *testing.T) {
	tests := []struct {
		client   string
		server   string
		expected bool
	}{
		{"v1.0.542", "v1.0.533", false},
		{"v1.0.533", "v1.0.542", true},
		{"v1.0.533", "v1.0.533", false},
		{"dev", "v0.0.1", true},
	}

	for _, tt := range tests {
		result := IsUpdateAvailable(tt.client, tt.server)
		if result != tt.expected {
			t.Errorf("IsUpdateAvailable(%s, %s) = %v; want %v", tt.client, tt.server, result, tt.expected)
		}
	}
}
