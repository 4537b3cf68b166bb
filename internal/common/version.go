package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build identity, stamped via -ldflags at release time. Deployed builds
// may also ship a .version file next to the binary, which wins over the
// compiled-in value.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the commit hash the binary was built from
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns the version with build metadata, for logs and
// crash reports
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile overrides Version from a .version file beside the
// executable when one exists, and returns the effective version
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
	if err != nil {
		return Version
	}

	if v := strings.TrimSpace(string(data)); v != "" {
		Version = v
	}
	return Version
}
