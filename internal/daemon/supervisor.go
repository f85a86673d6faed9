package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/wardenhq/warden/internal/binpath"
	"github.com/wardenhq/warden/internal/db"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/proc"
)

// Config carries the settings a Supervisor needs. ResolveBinary defaults to
// the standard candidate search next to the current executable.
type Config struct {
	RemoteHost    string // host[:port] the listen address is derived from
	Token         string // daemon access token; may be empty
	DataDir       string // data directory handed to the spawned daemon
	ResolveBinary func() (string, error)
	Events        *db.DB // optional lifecycle event log
}

// Supervisor is the daemon lifecycle state machine. It owns the child handle
// of a daemon it spawned itself and the last known status snapshot; one lock
// serializes all lifecycle operations end-to-end, so "is it running" and
// "spawn a new one" can never race.
//
// Construct one Supervisor per application and share it; the status is not
// persisted, so a fresh process starts from Stopped and re-probes the network
// to discover a daemon left running by an earlier session.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	status Status
	child  *proc.Handle
}

// NewSupervisor creates a supervisor in the Stopped state.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.ResolveBinary == nil {
		cfg.ResolveBinary = binpath.Resolve
	}
	s := &Supervisor{
		cfg:    cfg,
		status: Status{State: lifecycle.StateStopped},
	}
	SyncListenAddr(&s.status, ListenAddr(cfg.RemoteHost))
	return s
}

// reconcileOwned folds the owned child's exit state into the status. Callers
// must hold the lock.
func (s *Supervisor) reconcileOwned() {
	if s.child == nil {
		// A Running claim without an owned handle is stale until the
		// network probe confirms it. Stopped and Error stick as-is.
		if s.status.State == lifecycle.StateRunning {
			s.status.State = lifecycle.StateStopped
			s.status.PID = 0
		}
		return
	}

	exit, err := s.child.TryWait()
	switch {
	case err != nil:
		s.status = Status{
			State:       lifecycle.StateError,
			PID:         s.child.PID(),
			StartedAtMS: s.status.StartedAtMS,
			LastError:   fmt.Sprintf("failed to inspect daemon process: %v", err),
			ListenAddr:  s.status.ListenAddr,
		}
	case exit == nil:
		// Still running.
		s.status.State = lifecycle.StateRunning
		s.status.PID = s.child.PID()
		s.status.LastError = ""
	case exit.Success:
		s.child = nil
		s.status = Status{
			State:      lifecycle.StateStopped,
			ListenAddr: s.status.ListenAddr,
		}
	default:
		pid := s.child.PID()
		s.child = nil
		message := fmt.Sprintf("daemon exited with status: %s.", exit.Desc)
		if hint := proc.ExitHint(exit.Code); hint != "" {
			message += " " + hint
		}
		s.status = Status{
			State:       lifecycle.StateError,
			PID:         pid,
			StartedAtMS: s.status.StartedAtMS,
			LastError:   message,
			ListenAddr:  s.status.ListenAddr,
		}
	}
}

func (s *Supervisor) spawnArgs(token string) []string {
	args := []string{"--listen", ListenAddr(s.cfg.RemoteHost), "--data-dir", s.cfg.DataDir}
	if token != "" {
		args = append(args, "--token", token)
	}
	return args
}

// CommandPreview returns the argv that would be used to spawn the daemon,
// with the token redacted for display.
func (s *Supervisor) CommandPreview() []string {
	binary, err := s.cfg.ResolveBinary()
	if err != nil {
		binary = binpath.Candidates()[0]
	}
	token := ""
	if strings.TrimSpace(s.cfg.Token) != "" {
		token = "********"
	}
	return append([]string{binary}, s.spawnArgs(token)...)
}

// Start brings a daemon up on the configured address. Calling Start while a
// daemon is already running is a no-op returning the current status; a
// cooperating daemon left over from another session is adopted rather than
// duplicated, and a foreign listener on the port is a conflict error.
func (s *Supervisor) Start() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listenAddr := ListenAddr(s.cfg.RemoteHost)
	port, ok := PortFromHost(listenAddr)
	if !ok {
		return s.status, fmt.Errorf("invalid daemon listen address: %s", listenAddr)
	}
	token := strings.TrimSpace(s.cfg.Token)

	s.reconcileOwned()
	if s.status.State == lifecycle.StateRunning {
		return s.status, nil
	}

	switch probe := probeDaemon(listenAddr, token); probe.Outcome {
	case ProbeRunning:
		// Adopt the already-running daemon without taking ownership.
		pid, _ := proc.FindListenerPID(port)
		s.child = nil
		s.status = Status{
			State:       lifecycle.StateRunning,
			PID:         pid,
			StartedAtMS: s.status.StartedAtMS,
			LastError:   probe.AuthError,
			ListenAddr:  listenAddr,
		}
		s.logEvent("adopted running daemon")
		if !probe.AuthOK {
			detail := probe.AuthError
			if detail == "" {
				detail = "daemon is already running but authentication failed"
			}
			return s.status, errors.New(detail)
		}
		return s.status, nil
	case ProbeNotDaemon:
		return s.status, fmt.Errorf("cannot start daemon because %s is already in use by another process", listenAddr)
	case ProbeUnreachable:
		// Free to spawn.
	}

	if err := EnsureListenAddrAvailable(listenAddr); err != nil {
		return s.status, err
	}

	binary, err := s.cfg.ResolveBinary()
	if err != nil {
		return s.status, err
	}
	child, err := proc.Spawn(binary, s.spawnArgs(token)...)
	if err != nil {
		return s.status, fmt.Errorf("failed to start daemon: %w", err)
	}

	s.child = child
	s.status = Status{
		State:       lifecycle.StateRunning,
		PID:         child.PID(),
		StartedAtMS: lifecycle.NowUnixMS(),
		ListenAddr:  listenAddr,
	}
	s.logEvent("spawned daemon")
	return s.status, nil
}

// Stop tears the daemon down: an owned child is killed directly with its
// whole process subtree; a detected but unowned daemon is asked to exit over
// the protocol, with signal escalation against the resolved PID when the
// request fails. A foreign listener is refused. The returned status always
// comes from an authoritative post-stop probe.
func (s *Supervisor) Stop() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listenAddr := ListenAddr(s.cfg.RemoteHost)
	port, portOK := PortFromHost(listenAddr)
	token := strings.TrimSpace(s.cfg.Token)

	var stopErr error
	if s.child != nil {
		child := s.child
		s.child = nil
		child.KillTree()
		child.Wait()
	} else if portOK {
		switch probeDaemon(listenAddr, token).Outcome {
		case ProbeRunning:
			stopErr = s.stopUnowned(listenAddr, port, token)
		case ProbeNotDaemon:
			stopErr = fmt.Errorf("port %d is in use by a non-daemon process; refusing to stop it", port)
		case ProbeUnreachable:
			// Already stopped.
		}
	}

	// The post-stop probe decides the reported state regardless of which
	// branch ran above.
	var pidAfter int
	if portOK {
		pidAfter, _ = proc.FindListenerPID(port)
	}
	stopDetail := ""
	if stopErr != nil {
		stopDetail = stopErr.Error()
	}

	var finalErr error
	switch probe := probeDaemon(listenAddr, token); probe.Outcome {
	case ProbeRunning:
		detail := firstNonEmpty(stopDetail, probe.AuthError, "daemon is still running after stop attempt")
		s.status = Status{
			State:       lifecycle.StateError,
			PID:         pidAfter,
			StartedAtMS: s.status.StartedAtMS,
			LastError:   detail,
			ListenAddr:  s.status.ListenAddr,
		}
		finalErr = errors.New(detail)
	case ProbeNotDaemon:
		detail := firstNonEmpty(stopDetail, "configured port is now occupied by a non-daemon process")
		s.status = Status{
			State:       lifecycle.StateError,
			PID:         pidAfter,
			StartedAtMS: s.status.StartedAtMS,
			LastError:   detail,
			ListenAddr:  s.status.ListenAddr,
		}
		finalErr = errors.New(detail)
	case ProbeUnreachable:
		s.status = Status{
			State:      lifecycle.StateStopped,
			LastError:  stopDetail,
			ListenAddr: s.status.ListenAddr,
		}
	}
	SyncListenAddr(&s.status, listenAddr)
	s.logEvent("stop requested")
	return s.status, finalErr
}

// stopUnowned drives the in-protocol shutdown of a daemon this supervisor
// did not spawn, escalating to PID signals when the RPC path fails. Non-nil
// errors here are recorded, not retried.
func (s *Supervisor) stopUnowned(listenAddr string, port int, token string) error {
	shutdownErr := requestShutdown(listenAddr, token)
	if shutdownErr == nil {
		if !waitForShutdown(listenAddr, token) {
			return errors.New("daemon acknowledged shutdown but is still reachable")
		}
		return nil
	}

	pid, ok := proc.FindListenerPID(port)
	if !ok {
		return shutdownErr
	}
	if killErr := killPIDGracefully(pid); killErr != nil {
		if errors.Is(killErr, proc.ErrSignalUnsupported) && runtime.GOOS == "windows" {
			slog.Debug("PID signaling unavailable, RPC shutdown was the only option", "pid", pid)
		}
		return fmt.Errorf("%v; %v", shutdownErr, killErr)
	}
	return nil
}

// Refresh reconciles the status against the owned handle and, when the
// daemon is not owned-running, against the network: a daemon started by
// another session is detected and reported, but never spawned.
func (s *Supervisor) Refresh() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	listenAddr := ListenAddr(s.cfg.RemoteHost)
	token := strings.TrimSpace(s.cfg.Token)

	s.reconcileOwned()
	if s.status.State != lifecycle.StateRunning {
		var pid int
		if port, ok := PortFromHost(listenAddr); ok {
			pid, _ = proc.FindListenerPID(port)
		}
		switch probe := probeDaemon(listenAddr, token); probe.Outcome {
		case ProbeRunning:
			s.status = Status{
				State:       lifecycle.StateRunning,
				PID:         pid,
				StartedAtMS: s.status.StartedAtMS,
				LastError:   probe.AuthError,
				ListenAddr:  s.status.ListenAddr,
			}
		case ProbeNotDaemon:
			s.status = Status{
				State:       lifecycle.StateError,
				PID:         pid,
				StartedAtMS: s.status.StartedAtMS,
				LastError:   fmt.Sprintf("configured daemon port %s is occupied by a non-daemon process", listenAddr),
				ListenAddr:  s.status.ListenAddr,
			}
		case ProbeUnreachable:
			// Keep the reconciled status as-is.
		}
	}

	SyncListenAddr(&s.status, listenAddr)
	return s.status
}

func (s *Supervisor) logEvent(detail string) {
	if s.cfg.Events == nil {
		return
	}
	if s.status.LastError != "" {
		detail = fmt.Sprintf("%s: %s", detail, s.status.LastError)
	}
	if err := s.cfg.Events.LogEvent("daemon", string(s.status.State), s.status.PID, detail); err != nil {
		slog.Debug("Failed to record lifecycle event", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
