package app

import "fmt"

// Build metadata, overridden with -ldflags "-X github.com/heartmarshall/discogs-dumpload/internal/app.Version=v1.2.0".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildVersion formats the build metadata for the startup log line and the
// version command.
func BuildVersion() string {
	return fmt.Sprintf("dumpload %s (commit: %s, built: %s)", Version, Commit, BuildTime)
}
