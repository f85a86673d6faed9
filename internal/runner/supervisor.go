// Package runner supervises the auxiliary orbit runner process. Unlike the
// TCP daemon it exposes no control protocol; the supervisor manages it purely
// through the owned process handle: spawn, poll exit status, kill the tree.
package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/wardenhq/warden/internal/binpath"
	"github.com/wardenhq/warden/internal/db"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/proc"
)

// Status is the runner status snapshot, replaced wholesale on every
// transition.
type Status struct {
	State       lifecycle.State `json:"state"`
	PID         int             `json:"pid,omitempty"`
	StartedAtMS int64           `json:"started_at_ms,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	OrbitURL    string          `json:"orbit_url,omitempty"`
}

// Config carries the settings a runner Supervisor needs.
type Config struct {
	OrbitURL      string // remote endpoint; required to start
	OrbitToken    string // optional
	OrbitAuthURL  string // optional
	RunnerName    string // optional
	DataDir       string
	ResolveBinary func() (string, error)
	Events        *db.DB // optional lifecycle event log
}

// Supervisor is the runner lifecycle state machine. Same locking discipline
// as the daemon supervisor: one mutex held end-to-end per operation,
// independent of the daemon's lock.
type Supervisor struct {
	mu     sync.Mutex
	cfg    Config
	status Status
	child  *proc.Handle
}

// NewSupervisor creates a runner supervisor in the Stopped state.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.ResolveBinary == nil {
		cfg.ResolveBinary = binpath.Resolve
	}
	return &Supervisor{
		cfg:    cfg,
		status: Status{State: lifecycle.StateStopped},
	}
}

// reconcileOwned folds the owned child's exit state into the status. Callers
// must hold the lock.
func (s *Supervisor) reconcileOwned() {
	if s.child == nil {
		// The runner is never adopted, so without a handle the only
		// valid live state is none. Error sticks until the next Start.
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
			LastError:   fmt.Sprintf("failed to inspect runner process: %v", err),
			OrbitURL:    s.status.OrbitURL,
		}
	case exit == nil:
		s.status.State = lifecycle.StateRunning
		s.status.PID = s.child.PID()
		s.status.LastError = ""
	case exit.Success:
		s.child = nil
		s.status = Status{
			State:    lifecycle.StateStopped,
			OrbitURL: s.status.OrbitURL,
		}
	default:
		pid := s.child.PID()
		s.child = nil
		message := fmt.Sprintf("runner exited with status: %s.", exit.Desc)
		if hint := proc.ExitHint(exit.Code); hint != "" {
			message += " " + hint
		}
		s.status = Status{
			State:       lifecycle.StateError,
			PID:         pid,
			StartedAtMS: s.status.StartedAtMS,
			LastError:   message,
			OrbitURL:    s.status.OrbitURL,
		}
	}
}

// Start spawns the runner if it is not already running. Starting twice
// without an intervening Stop is a no-op returning the current status.
func (s *Supervisor) Start() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orbitURL := strings.TrimSpace(s.cfg.OrbitURL)
	if orbitURL == "" {
		return s.status, errors.New("orbit url is not configured")
	}

	s.reconcileOwned()
	if s.status.State == lifecycle.StateRunning {
		return s.status, nil
	}

	binary, err := s.cfg.ResolveBinary()
	if err != nil {
		return s.status, err
	}

	args := []string{"--data-dir", s.cfg.DataDir, "--orbit-url", orbitURL}
	if token := strings.TrimSpace(s.cfg.OrbitToken); token != "" {
		args = append(args, "--orbit-token", token)
	}
	if authURL := strings.TrimSpace(s.cfg.OrbitAuthURL); authURL != "" {
		args = append(args, "--orbit-auth-url", authURL)
	}
	if name := strings.TrimSpace(s.cfg.RunnerName); name != "" {
		args = append(args, "--orbit-runner-name", name)
	}

	child, err := proc.Spawn(binary, args...)
	if err != nil {
		return s.status, fmt.Errorf("failed to start runner: %w", err)
	}

	s.child = child
	s.status = Status{
		State:       lifecycle.StateRunning,
		PID:         child.PID(),
		StartedAtMS: lifecycle.NowUnixMS(),
		OrbitURL:    orbitURL,
	}
	s.logEvent("spawned runner")
	return s.status, nil
}

// Stop kills the owned runner process tree. Stopping an already-stopped
// runner succeeds and reports Stopped.
func (s *Supervisor) Stop() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child != nil {
		child := s.child
		s.child = nil
		child.KillTree()
		child.Wait()
	}

	s.status = Status{
		State:    lifecycle.StateStopped,
		OrbitURL: s.status.OrbitURL,
	}
	s.logEvent("stop requested")
	return s.status, nil
}

// Refresh reconciles and returns the current status, filling in the
// configured endpoint URL when none has been recorded yet.
func (s *Supervisor) Refresh() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconcileOwned()
	if s.status.OrbitURL == "" {
		s.status.OrbitURL = strings.TrimSpace(s.cfg.OrbitURL)
	}
	return s.status
}

func (s *Supervisor) logEvent(detail string) {
	if s.cfg.Events == nil {
		return
	}
	if s.status.LastError != "" {
		detail = fmt.Sprintf("%s: %s", detail, s.status.LastError)
	}
	if err := s.cfg.Events.LogEvent("runner", string(s.status.State), s.status.PID, detail); err != nil {
		slog.Debug("Failed to record lifecycle event", "error", err)
	}
}
