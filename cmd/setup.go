package cmd

import (
	"log/slog"
	"strings"

	"github.com/wardenhq/warden/internal/core"
	"github.com/wardenhq/warden/internal/daemon"
	"github.com/wardenhq/warden/internal/db"
	"github.com/wardenhq/warden/internal/keyring"
	"github.com/wardenhq/warden/internal/runner"
)

// resolveToken prefers the OS keyring over the config file.
func resolveToken() string {
	token, err := keyring.GetToken()
	if err == nil && strings.TrimSpace(token) != "" {
		return token
	}
	if err != nil {
		slog.Debug("Keyring unavailable, falling back to config token", "error", err)
	}
	return core.Config.RemoteToken
}

// openEvents opens the lifecycle event log; logging is best-effort, a nil
// return just disables it.
func openEvents() *db.DB {
	events, err := db.Open(core.GetEventsDBPath())
	if err != nil {
		slog.Debug("Lifecycle event log unavailable", "error", err)
		return nil
	}
	return events
}

func newDaemonSupervisor(events *db.DB) *daemon.Supervisor {
	return daemon.NewSupervisor(daemon.Config{
		RemoteHost: core.Config.RemoteHost,
		Token:      resolveToken(),
		DataDir:    core.GetDataDir(),
		Events:     events,
	})
}

func newRunnerSupervisor(events *db.DB) *runner.Supervisor {
	return runner.NewSupervisor(runner.Config{
		OrbitURL:     core.Config.Orbit.URL,
		OrbitToken:   resolveToken(),
		OrbitAuthURL: core.Config.Orbit.AuthURL,
		RunnerName:   core.Config.Orbit.RunnerName,
		DataDir:      core.GetDataDir(),
		Events:       events,
	})
}
