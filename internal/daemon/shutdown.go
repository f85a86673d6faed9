package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/wardenhq/warden/internal/proc"
)

// requestShutdown asks a running daemon to exit over the control protocol,
// authenticating first when the daemon demands it.
func requestShutdown(listenAddr, token string) error {
	connectAddr, ok := ConnectAddr(listenAddr)
	if !ok {
		return fmt.Errorf("invalid daemon listen address: %s", listenAddr)
	}

	client, err := dialRPC(connectAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", connectAddr, err)
	}
	defer client.Close()

	if _, err := client.Call("ping", struct{}{}); err != nil {
		if !isAuthErrorMessage(err.Error()) {
			return fmt.Errorf("daemon ping failed: %w", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return fmt.Errorf("daemon is running but requires a remote access token")
		}
		authParams := struct {
			Token string `json:"token"`
		}{Token: token}
		if _, err := client.Call("auth", authParams); err != nil {
			return fmt.Errorf("daemon authentication failed: %w", err)
		}
	}

	if _, err := client.Call("daemon_shutdown", struct{}{}); err != nil {
		return fmt.Errorf("daemon shutdown request failed: %w", err)
	}
	return nil
}

// waitForShutdown polls until the daemon port stops answering. Returns false
// when the daemon is still reachable after the full wait (~2s).
func waitForShutdown(listenAddr, token string) bool {
	for range 20 {
		if probeDaemon(listenAddr, token).Outcome == ProbeUnreachable {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// killPIDGracefully escalates on a daemon that ignored or could not receive
// the RPC shutdown: graceful signal with a bounded poll for the process to
// disappear, then a forced kill with another bounded poll.
func killPIDGracefully(pid int) error {
	if err := proc.TerminateGracefully(pid); err != nil {
		return err
	}
	for range 12 {
		if !proc.IsRunning(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := proc.TerminateForcibly(pid); err != nil {
		return err
	}
	for range 8 {
		if !proc.IsRunning(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("daemon process %d is still running", pid)
}
