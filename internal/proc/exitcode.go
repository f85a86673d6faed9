package proc

import "runtime"

// Exit codes that warrant an extra hint in failure messages, keyed by
// platform family then code. 101 is the abort status of a sidecar that
// panicked during startup, which almost always means the listen port was
// already taken.
var exitHints = map[string]map[int]string{
	"unix": {
		101: "This usually indicates a startup panic (often due to an unavailable listen port).",
	},
	"windows": {
		101: "This usually indicates a startup panic (often due to an unavailable listen port).",
	},
}

// ExitHint returns the hint for an exit code on the current platform, or ""
// when the code has no special meaning.
func ExitHint(code int) string {
	return exitHintFor(runtime.GOOS, code)
}

func exitHintFor(goos string, code int) string {
	family := "unix"
	if goos == "windows" {
		family = "windows"
	}
	return exitHints[family][code]
}
