package core

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var Version string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		Version = "devel"
		return
	}

	// Tagged releases carry a real module version; local builds report the
	// VCS revision instead.
	if v := info.Main.Version; v != "" && v != "(devel)" && !strings.Contains(v, "-") {
		Version = v
		return
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if revision == "" {
		Version = "devel"
		return
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	Version = fmt.Sprintf("devel-%s", revision)
	if dirty {
		Version += "-dirty"
	}
}

// FormatVersion strips the "v" prefix from tagged release versions for
// display; devel versions pass through unchanged.
func FormatVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}
