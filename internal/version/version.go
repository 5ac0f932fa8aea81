// Package version carries build metadata stamped into the metalpulse binary
// with -ldflags "-X metalpulse/internal/version.Version=..." and printed by
// the version command.
package version

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)
