package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/lifecycle"
)

func NewRunnerCommand() *cobra.Command {
	runnerCmd := &cobra.Command{
		Use:   "runner",
		Short: "Manage the orbit runner process",
		Long: `Manage the orbit runner, a worker process that connects out to the
configured orbit endpoint. Unlike the daemon it exposes no control protocol,
so it is tracked purely as a child process.`,
	}

	runnerCmd.AddCommand(
		newRunnerStartCommand(),
		newRunnerStopCommand(),
		newRunnerStatusCommand(),
	)

	return runnerCmd
}

func newRunnerStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the orbit runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			supervisor := newRunnerSupervisor(events)
			status, err := supervisor.Start()
			if err != nil {
				return err
			}

			slog.Info("Runner running", "pid", status.PID, "orbit", status.OrbitURL)
			return nil
		},
	}
}

func newRunnerStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the orbit runner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			supervisor := newRunnerSupervisor(events)
			status, err := supervisor.Stop()
			if err != nil {
				return err
			}

			if status.State == lifecycle.StateStopped {
				slog.Info("Runner stopped")
			} else {
				slog.Warn("Runner is not stopped", "state", status.State, "detail", status.LastError)
			}
			return nil
		},
	}
}

func newRunnerStatusCommand() *cobra.Command {
	var format string

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show orbit runner status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			supervisor := newRunnerSupervisor(events)
			status := supervisor.Refresh()

			switch format {
			case "json":
				out, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			case "text":
				fmt.Printf("State: %s\n", status.State)
				if status.PID != 0 {
					fmt.Printf("PID:   %d\n", status.PID)
				}
				if status.OrbitURL != "" {
					fmt.Printf("Orbit: %s\n", status.OrbitURL)
				}
				if status.StartedAtMS != 0 {
					started := time.UnixMilli(status.StartedAtMS)
					fmt.Printf("Since: %s\n", started.Format(time.DateTime))
				}
				if status.LastError != "" {
					fmt.Printf("Error: %s\n", status.LastError)
				}
			default:
				return fmt.Errorf("unknown output format %q (expected text or json)", format)
			}
			return nil
		},
	}

	statusCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text or json)")

	return statusCmd
}
