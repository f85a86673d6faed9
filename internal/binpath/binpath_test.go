package binpath

import (
	"runtime"
	"strings"
	"testing"
)

func TestCandidates(t *testing.T) {
	names := Candidates()
	if len(names) != 2 {
		t.Fatalf("got %d candidates, want 2", len(names))
	}
	// The underscored name is the shipped default and must win.
	if !strings.HasPrefix(names[0], "warden_daemon") {
		t.Errorf("first candidate = %q, want warden_daemon first", names[0])
	}
	if !strings.HasPrefix(names[1], "warden-daemon") {
		t.Errorf("second candidate = %q, want warden-daemon fallback", names[1])
	}
	for _, name := range names {
		if runtime.GOOS == "windows" != strings.HasSuffix(name, ".exe") {
			t.Errorf("candidate %q has wrong extension for %s", name, runtime.GOOS)
		}
	}
}

func TestResolve_MissingBinary(t *testing.T) {
	// The test binary lives in a temp dir with no daemon next to it.
	_, err := Resolve()
	if err == nil {
		t.Skip("a daemon binary happens to exist next to the test binary")
	}
	if !strings.Contains(err.Error(), "unable to locate daemon binary") {
		t.Errorf("error = %v, want locate failure", err)
	}
	if !strings.Contains(err.Error(), "warden_daemon") {
		t.Errorf("error = %v, should list the tried names", err)
	}
}
