package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/lifecycle"
)

func NewStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the sidecar daemon",
		Long: `Stop the sidecar daemon.

A daemon started by another session is asked to exit over the control
protocol first; if it does not cooperate, it is terminated by pid with an
escalating signal sequence. Stopping an already-stopped daemon is a no-op.`,
		Aliases: []string{"shutdown", "quit"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			supervisor := newDaemonSupervisor(events)
			status, err := supervisor.Stop()
			if err != nil {
				return err
			}

			if status.State == lifecycle.StateStopped {
				slog.Info("Daemon stopped")
				if status.LastError != "" {
					slog.Warn(status.LastError)
				}
			} else {
				slog.Warn("Daemon is not stopped", "state", status.State, "detail", status.LastError)
			}
			return nil
		},
	}
}
