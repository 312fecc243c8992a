// Package version holds build information for the intake service, set via ldflags.
// Example: go build -ldflags "-X intake/pkg/version.Version=v1.2.3".
package version

import "fmt"

//nolint:gochecknoglobals // ldflags injection targets
var (
	// Version is the semantic version, or "dev" for local builds.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)

// String renders the build information for -version output.
func String() string {
	return fmt.Sprintf("intake %s\n  commit: %s\n  built:  %s", Version, Commit, Date)
}
