// Package version holds build metadata stamped by the linker.
package version

import (
	"fmt"
	"runtime/debug"
)

// Stamped with -ldflags "-X github.com/Sumatoshi-tech/treefind/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const unstamped = "dev"

// InitBinaryVersion fills Version and Commit from the module build info when
// the linker did not stamp them, as with "go install".
func InitBinaryVersion() {
	if Version != unstamped {
		return
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if v := info.Main.Version; v != "" && v != "(devel)" {
		Version = v
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			Commit = setting.Value
		case "vcs.time":
			Date = setting.Value
		}
	}
}

// String formats the metadata for "treefind version".
func String() string {
	return fmt.Sprintf("treefind %s (commit: %s, built: %s)", Version, Commit, Date)
}
