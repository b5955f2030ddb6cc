package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Build metadata, stamped with -ldflags at release time
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// ResolveVersion fills in metadata the build left unstamped. A
// .version file next to the executable overrides Version, and the VCS
// revision embedded by the Go toolchain supplies GitCommit for
// unstamped builds. Returns the effective version.
func ResolveVersion() string {
	if exePath, err := os.Executable(); err == nil {
		data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
		if err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				Version = v
			}
		}
	}

	if GitCommit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
					GitCommit = setting.Value[:12]
				}
			}
		}
	}

	return Version
}

// GetVersion returns the effective version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns the version with build metadata appended
func GetFullVersion() string {
	if Build == "unknown" && GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (build %s, commit %s)", Version, Build, GitCommit)
}
