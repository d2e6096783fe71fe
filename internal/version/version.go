// Package version carries build metadata stamped in via ldflags.
package version

import "strings"

// Name is the product name reported by /health and the startup log.
const Name = "Finlog"

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Full returns the version with commit and build time when both were stamped.
func Full() string {
	if BuildTime != "unknown" && GitCommit != "unknown" {
		return Version + " (commit: " + GitCommit + ", built: " + BuildTime + ")"
	}
	return Version
}

// UserAgent names a finlog component in outbound requests,
// e.g. "finlog-historyclient/0.1.0".
func UserAgent(component string) string {
	return strings.ToLower(Name) + "-" + component + "/" + Version
}
