package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "apim-kubeapi", Name)
}

func TestFull_WithoutBuildInfo(t *testing.T) {
	assert.Equal(t, Version, Full())
}

func TestFull_WithBuildInfo(t *testing.T) {
	buildTime, gitCommit := BuildTime, GitCommit
	t.Cleanup(func() {
		BuildTime, GitCommit = buildTime, gitCommit
	})

	BuildTime = "2026-10-19T08:00:00Z"
	GitCommit = "3f9c2ab"
	assert.Equal(t, Version+" (commit: 3f9c2ab, built: 2026-10-19T08:00:00Z)", Full())

	GitCommit = "unknown"
	assert.Equal(t, Version, Full())
}
