package daemon

import (
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/internal/lifecycle"
)

// mustNotResolve fails the test if the supervisor tries to spawn a binary.
func mustNotResolve(t *testing.T) func() (string, error) {
	return func() (string, error) {
		t.Error("supervisor resolved the daemon binary, expected no spawn")
		return "", nil
	}
}

func TestStart_AdoptsRunningDaemon(t *testing.T) {
	daemon := startFakeDaemon(t, "")

	s := NewSupervisor(Config{
		RemoteHost:    daemon.RemoteHost(),
		ResolveBinary: mustNotResolve(t),
	})

	status, err := s.Start()
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if status.State != lifecycle.StateRunning {
		t.Errorf("state = %s, want running", status.State)
	}
	if status.LastError != "" {
		t.Errorf("unexpected last error: %q", status.LastError)
	}
}

func TestStart_AdoptsDaemonButReportsAuthFailure(t *testing.T) {
	daemon := startFakeDaemon(t, "secret")

	s := NewSupervisor(Config{
		RemoteHost:    daemon.RemoteHost(),
		Token:         "wrong",
		ResolveBinary: mustNotResolve(t),
	})

	status, err := s.Start()
	if err == nil {
		t.Fatal("expected auth failure error")
	}
	// The daemon is still recorded as running even though we cannot talk
	// to it.
	if status.State != lifecycle.StateRunning {
		t.Errorf("state = %s, want running", status.State)
	}
	if !strings.Contains(status.LastError, "authentication failed") {
		t.Errorf("last error = %q, want authentication failure", status.LastError)
	}
}

func TestStart_RefusesForeignListener(t *testing.T) {
	addr := startGarbageServer(t)

	s := NewSupervisor(Config{
		RemoteHost:    addr,
		ResolveBinary: mustNotResolve(t),
	})

	_, err := s.Start()
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if !strings.Contains(err.Error(), "already in use by another process") {
		t.Errorf("error = %v, want port conflict", err)
	}
}

func TestStop_UnownedDaemonViaProtocol(t *testing.T) {
	daemon := startFakeDaemon(t, "secret")

	s := NewSupervisor(Config{
		RemoteHost:    daemon.RemoteHost(),
		Token:         "secret",
		ResolveBinary: mustNotResolve(t),
	})

	status, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if status.State != lifecycle.StateStopped {
		t.Errorf("state = %s, want stopped", status.State)
	}
	if !daemon.ShutdownRequested() {
		t.Error("daemon never received the shutdown request")
	}
}

func TestStop_RefusesForeignListener(t *testing.T) {
	addr := startGarbageServer(t)

	s := NewSupervisor(Config{
		RemoteHost:    addr,
		ResolveBinary: mustNotResolve(t),
	})

	status, err := s.Stop()
	if err == nil {
		t.Fatal("expected refusal error")
	}
	if !strings.Contains(err.Error(), "refusing") {
		t.Errorf("error = %v, want refusal", err)
	}
	if status.State != lifecycle.StateError {
		t.Errorf("state = %s, want error", status.State)
	}
}

func TestStop_AlreadyStoppedIsNoop(t *testing.T) {
	// Nothing listening on the derived port.
	daemon := startFakeDaemon(t, "")
	remoteHost := daemon.RemoteHost()
	daemon.listener.Close()
	time.Sleep(10 * time.Millisecond)

	s := NewSupervisor(Config{
		RemoteHost:    remoteHost,
		ResolveBinary: mustNotResolve(t),
	})

	status, err := s.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if status.State != lifecycle.StateStopped {
		t.Errorf("state = %s, want stopped", status.State)
	}
	if status.LastError != "" {
		t.Errorf("unexpected last error: %q", status.LastError)
	}
}

func TestRefresh_DetectsExternalDaemon(t *testing.T) {
	daemon := startFakeDaemon(t, "")

	s := NewSupervisor(Config{
		RemoteHost:    daemon.RemoteHost(),
		ResolveBinary: mustNotResolve(t),
	})

	status := s.Refresh()
	if status.State != lifecycle.StateRunning {
		t.Errorf("state = %s, want running", status.State)
	}
}

func TestRefresh_ReportsForeignListener(t *testing.T) {
	addr := startGarbageServer(t)

	s := NewSupervisor(Config{
		RemoteHost:    addr,
		ResolveBinary: mustNotResolve(t),
	})

	status := s.Refresh()
	if status.State != lifecycle.StateError {
		t.Errorf("state = %s, want error", status.State)
	}
	if !strings.Contains(status.LastError, "non-daemon process") {
		t.Errorf("last error = %q, want foreign listener mention", status.LastError)
	}
}

func TestCommandPreview_RedactsToken(t *testing.T) {
	s := NewSupervisor(Config{
		RemoteHost:    "daemon.example.net:4545",
		Token:         "super-secret-token",
		DataDir:       "/var/lib/warden",
		ResolveBinary: func() (string, error) { return "/opt/warden/warden_daemon", nil },
	})

	preview := strings.Join(s.CommandPreview(), " ")
	if strings.Contains(preview, "super-secret-token") {
		t.Errorf("preview leaks the token: %s", preview)
	}
	if !strings.Contains(preview, "--token ********") {
		t.Errorf("preview = %q, want redacted token flag", preview)
	}
	if !strings.Contains(preview, "--listen 0.0.0.0:4545") {
		t.Errorf("preview = %q, want derived listen address", preview)
	}
	if !strings.Contains(preview, "--data-dir /var/lib/warden") {
		t.Errorf("preview = %q, want data dir flag", preview)
	}
}

func TestCommandPreview_OmitsEmptyToken(t *testing.T) {
	s := NewSupervisor(Config{
		RemoteHost:    "daemon.example.net",
		ResolveBinary: func() (string, error) { return "/opt/warden/warden_daemon", nil },
	})

	preview := strings.Join(s.CommandPreview(), " ")
	if strings.Contains(preview, "--token") {
		t.Errorf("preview = %q, token flag must be omitted when unset", preview)
	}
}
