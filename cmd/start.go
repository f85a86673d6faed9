package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the sidecar daemon",
		Long: `Start the sidecar daemon on the listen address derived from the configured
remote host.

If a cooperating daemon is already listening there it is adopted instead of
duplicated. If the port is held by some other program, the command refuses to
touch it and fails.`,
		Aliases: []string{"startup", "boot"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			supervisor := newDaemonSupervisor(events)
			status, err := supervisor.Start()
			if err != nil {
				return err
			}

			slog.Info("Daemon running",
				"pid", status.PID,
				"listen", status.ListenAddr,
			)
			if status.LastError != "" {
				slog.Warn(status.LastError)
			}
			return nil
		},
	}
}
