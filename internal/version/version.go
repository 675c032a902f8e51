// Package version holds the build-time version string, overridden via
// -ldflags "-X github.com/reviewpipe/reviewpipe/internal/version.version=..."
// at release build time.
package version

var version = "dev"

// Value returns the current build's version string.
func Value() string {
	return version
}
