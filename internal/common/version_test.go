package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFullVersion(t *testing.T) {
	origVersion, origBuild, origCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = origVersion, origBuild, origCommit })

	// Unstamped builds report the bare version
	Version, Build, GitCommit = "dev", "unknown", "unknown"
	assert.Equal(t, "dev", GetFullVersion())

	Version, Build, GitCommit = "1.2.0", "2026-08-30T10:00:00Z", "abc123def456"
	assert.Equal(t, "1.2.0 (build 2026-08-30T10:00:00Z, commit abc123def456)", GetFullVersion())
}

func TestResolveVersion_KeepsStampedValues(t *testing.T) {
	origVersion, origBuild, origCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = origVersion, origBuild, origCommit })

	Version, GitCommit = "1.2.0", "abc123def456"
	assert.Equal(t, "1.2.0", ResolveVersion())
	assert.Equal(t, "abc123def456", GitCommit)
}
