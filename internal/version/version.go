// Package version holds build identification stamped in via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/photonics-data/femtoctl/internal/version.Version=v0.2.0"
package version

import "fmt"

var (
	// Version is the current application version.
	Version = "dev"
	// GitSHA is the git commit SHA the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String returns a single human-readable build identifier for logs and
// version output.
func String() string {
	return fmt.Sprintf("%s (%s, built %s)", Version, GitSHA, BuildTime)
}
