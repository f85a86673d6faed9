// Package daemon supervises the lifecycle of the sidecar TCP daemon: it
// probes what is listening on the configured port, speaks the line-delimited
// JSON control protocol, spawns a new daemon when none is running, and
// escalates from in-protocol shutdown to OS signals when the daemon stops
// cooperating.
package daemon

import "github.com/wardenhq/warden/internal/lifecycle"

// Status is the daemon status snapshot returned by every lifecycle
// operation. It is a value record, replaced wholesale on each transition.
type Status struct {
	State       lifecycle.State `json:"state"`
	PID         int             `json:"pid,omitempty"`
	StartedAtMS int64           `json:"started_at_ms,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	ListenAddr  string          `json:"listen_addr,omitempty"`
}

// SyncListenAddr writes the configured listen address into the status unless
// the daemon is currently running with an address already recorded. A running
// daemon keeps the address it actually bound until it stops, regardless of
// reconfiguration.
func SyncListenAddr(status *Status, configuredListenAddr string) {
	if status.State == lifecycle.StateRunning && status.ListenAddr != "" {
		return
	}
	status.ListenAddr = configuredListenAddr
}
