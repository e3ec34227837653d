// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/Sumatoshi-tech/distinctcount/pkg/version.Version=v1.2.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Build metadata, overridden with -ldflags -X.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the running binary.
func Info(name string) string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", name, resolvedVersion(), Commit, Date)
}

// resolvedVersion falls back to the module version recorded by the Go
// toolchain when no version was injected, e.g. after go install.
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return Version
	}

	return info.Main.Version
}
