// Package version carries build metadata stamped with -ldflags -X.
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String renders the metadata for --version style output.
func String() string {
	return fmt.Sprintf("motionwatch %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
