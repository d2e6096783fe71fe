package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	originalBuildTime, originalGitCommit := BuildTime, GitCommit
	defer func() {
		BuildTime, GitCommit = originalBuildTime, originalGitCommit
	}()

	tests := []struct {
		name      string
		buildTime string
		gitCommit string
		want      string
	}{
		{name: "unstamped", buildTime: "unknown", gitCommit: "unknown", want: Version},
		{name: "commit only", buildTime: "unknown", gitCommit: "abcdef", want: Version},
		{name: "stamped", buildTime: "2026-01-01", gitCommit: "abcdef", want: Version + " (commit: abcdef, built: 2026-01-01)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			BuildTime, GitCommit = tt.buildTime, tt.gitCommit
			assert.Equal(t, tt.want, Full())
		})
	}
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "finlog-historyclient/"+Version, UserAgent("historyclient"))
}
