package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/wardenhq/warden/internal/core"
	"github.com/wardenhq/warden/internal/daemon"
	"github.com/wardenhq/warden/internal/db"
	"github.com/wardenhq/warden/internal/lifecycle"
)

func NewStatusCommand() *cobra.Command {
	var format string
	var history int
	var watch bool

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show the current state of the sidecar daemon.

The status is re-derived on every call: an owned child is checked for exit,
and otherwise the configured listen address is probed over the control
protocol.`,
		Aliases: []string{"info"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events := openEvents()
			if events != nil {
				defer events.Close()
			}

			if watch {
				return watchStatus(cmd.Context(), events, format)
			}

			supervisor := newDaemonSupervisor(events)
			status := supervisor.Refresh()
			if err := printStatus(status, supervisor, format); err != nil {
				return err
			}

			if history > 0 {
				return printHistory(events, history)
			}
			return nil
		},
	}

	statusCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text or json)")
	statusCmd.Flags().IntVar(&history, "history", 0, "show the last N lifecycle events")
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep running and report status changes")

	return statusCmd
}

func printStatus(status daemon.Status, supervisor *daemon.Supervisor, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "text":
		fmt.Printf("State:  %s\n", status.State)
		if status.PID != 0 {
			fmt.Printf("PID:    %d\n", status.PID)
		}
		if status.ListenAddr != "" {
			fmt.Printf("Listen: %s\n", status.ListenAddr)
		}
		if status.StartedAtMS != 0 {
			started := time.UnixMilli(status.StartedAtMS)
			fmt.Printf("Since:  %s\n", started.Format(time.DateTime))
		}
		if status.LastError != "" {
			fmt.Printf("Error:  %s\n", status.LastError)
		}
		if status.State != lifecycle.StateRunning {
			fmt.Printf("Start:  %s\n", strings.Join(supervisor.CommandPreview(), " "))
		}
	default:
		return fmt.Errorf("unknown output format %q (expected text or json)", format)
	}
	return nil
}

func printHistory(events *db.DB, limit int) error {
	if events == nil {
		return fmt.Errorf("lifecycle event log is unavailable")
	}
	entries, err := events.RecentEvents("", limit)
	if err != nil {
		return err
	}
	fmt.Println()
	for _, e := range entries {
		fmt.Printf("%s  %-7s %-8s pid=%-6d %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Kind, e.State, e.PID, e.Detail)
	}
	return nil
}

// watchStatus re-reports the daemon state on an interval and whenever the
// config file changes, until interrupted.
func watchStatus(parent context.Context, events *db.DB, format string) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch config: %w", err)
	}
	defer watcher.Close()

	// Watch the directory; editors replace the file and would drop a
	// watch held on the file itself.
	if err := watcher.Add(core.Config.ConfigPath); err != nil {
		slog.Warn("Config directory is not watchable", "error", err)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var last daemon.Status
	report := func(force bool) error {
		supervisor := newDaemonSupervisor(events)
		status := supervisor.Refresh()
		if !force && status == last {
			return nil
		}
		last = status
		return printStatus(status, supervisor, format)
	}

	if err := report(true); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := report(false); err != nil {
				return err
			}
		case event := <-watcher.Events:
			if event.Name != core.GetConfigFilePath() {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			slog.Debug("Config changed, reloading", "file", event.Name)
			if cfg, err := core.LoadConfig(core.GetConfigFilePath()); err == nil {
				cfg.ConfigPath = core.Config.ConfigPath
				cfg.Verbose = core.Config.Verbose
				core.Config = cfg
			}
			if err := report(true); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			slog.Warn("Config watch error", "error", err)
		}
	}
}
