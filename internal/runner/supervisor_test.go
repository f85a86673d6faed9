//go:build !windows

package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/lifecycle"
)

func stubBinary(t *testing.T, script string) func() (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden_daemon")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write stub binary: %v", err)
	}
	return func() (string, error) { return path, nil }
}

func waitForState(t *testing.T, s *Supervisor, want lifecycle.State) Status {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	var status Status
	for time.Now().Before(deadline) {
		status = s.Refresh()
		if status.State == want {
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("runner never reached state %s, last status: %+v", want, status)
	return status
}

func TestStart_RequiresOrbitURL(t *testing.T) {
	s := NewSupervisor(Config{
		ResolveBinary: func() (string, error) {
			t.Error("supervisor resolved the binary without an orbit url")
			return "", nil
		},
	})

	_, err := s.Start()
	if err == nil || !strings.Contains(err.Error(), "orbit url") {
		t.Fatalf("expected orbit url error, got: %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	s := NewSupervisor(Config{
		OrbitURL:      "https://orbit.example.net",
		DataDir:       t.TempDir(),
		ResolveBinary: stubBinary(t, "#!/bin/sh\nexec sleep 30\n"),
	})

	status, err := s.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	if status.State != lifecycle.StateRunning {
		t.Fatalf("state = %s, want running", status.State)
	}
	if status.PID <= 0 {
		t.Errorf("pid = %d, want a real child pid", status.PID)
	}
	if status.OrbitURL != "https://orbit.example.net" {
		t.Errorf("orbit url = %q, want the configured endpoint", status.OrbitURL)
	}

	again, err := s.Start()
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if again.PID != status.PID || again.StartedAtMS != status.StartedAtMS {
		t.Errorf("second Start changed the child: %+v vs %+v", again, status)
	}

	stopped, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stopped.State != lifecycle.StateStopped {
		t.Errorf("state after stop = %s, want stopped", stopped.State)
	}
	if stopped.PID != 0 {
		t.Errorf("pid after stop = %d, want 0", stopped.PID)
	}
	if stopped.OrbitURL != "https://orbit.example.net" {
		t.Errorf("orbit url lost on stop: %q", stopped.OrbitURL)
	}

	if _, err := s.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func TestRefresh_FailedExitBecomesError(t *testing.T) {
	s := NewSupervisor(Config{
		OrbitURL:      "https://orbit.example.net",
		DataDir:       t.TempDir(),
		ResolveBinary: stubBinary(t, "#!/bin/sh\nexit 3\n"),
	})

	started, err := s.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := waitForState(t, s, lifecycle.StateError)
	if !strings.Contains(status.LastError, "runner exited with status") {
		t.Errorf("last error = %q, want exit status description", status.LastError)
	}
	if status.PID != started.PID {
		t.Errorf("pid = %d, want the failed child pid %d", status.PID, started.PID)
	}

	// The error sticks across further refreshes.
	if again := s.Refresh(); again.State != lifecycle.StateError {
		t.Errorf("error state did not stick, got %s", again.State)
	}

	// Stop clears the failure.
	stopped, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stopped.State != lifecycle.StateStopped || stopped.LastError != "" {
		t.Errorf("status after stop = %+v, want clean stopped", stopped)
	}
}

func TestRefresh_CleanExitBecomesStopped(t *testing.T) {
	s := NewSupervisor(Config{
		OrbitURL:      "https://orbit.example.net",
		DataDir:       t.TempDir(),
		ResolveBinary: stubBinary(t, "#!/bin/sh\nexit 0\n"),
	})

	if _, err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := waitForState(t, s, lifecycle.StateStopped)
	if status.PID != 0 || status.StartedAtMS != 0 {
		t.Errorf("clean exit must clear pid and start time, got %+v", status)
	}
	if status.OrbitURL == "" {
		t.Error("orbit url lost after clean exit")
	}
}

func TestStart_PassesOptionalFlags(t *testing.T) {
	// The stub records its argv so the spawn contract can be checked.
	dir := t.TempDir()
	argvFile := filepath.Join(dir, "argv")
	script := "#!/bin/sh\necho \"$@\" > " + argvFile + "\nexec sleep 30\n"

	s := NewSupervisor(Config{
		OrbitURL:      "https://orbit.example.net",
		OrbitToken:    "tok",
		OrbitAuthURL:  "https://auth.example.net",
		RunnerName:    "builder-1",
		DataDir:       "/var/lib/warden",
		ResolveBinary: stubBinary(t, script),
	})

	if _, err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	var argv string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(argvFile); err == nil {
			argv = strings.TrimSpace(string(data))
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	for _, want := range []string{
		"--data-dir /var/lib/warden",
		"--orbit-url https://orbit.example.net",
		"--orbit-token tok",
		"--orbit-auth-url https://auth.example.net",
		"--orbit-runner-name builder-1",
	} {
		if !strings.Contains(argv, want) {
			t.Errorf("argv = %q, missing %q", argv, want)
		}
	}
}
