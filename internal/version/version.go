// Package version exposes build metadata for the doclens binary.
package version

import "fmt"

// Build-time variables set by ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String renders the full version line printed by the CLI.
func String() string {
	return fmt.Sprintf("doclens %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
