// Package version holds the server build metadata reported by /health.
package version

//nolint:revive // Injected via ldflags at release build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
