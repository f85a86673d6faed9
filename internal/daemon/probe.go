package daemon

import (
	"fmt"
	"strings"
)

// ProbeOutcome classifies what (if anything) answered on the daemon port.
type ProbeOutcome int

const (
	// ProbeUnreachable: nothing accepted the connection. This is the common
	// "daemon not started" case, not an error.
	ProbeUnreachable ProbeOutcome = iota
	// ProbeRunning: a cooperating daemon answered, authenticated or not.
	ProbeRunning
	// ProbeNotDaemon: something accepted the connection but does not speak
	// this protocol, almost certainly a different program squatting the port.
	ProbeNotDaemon
)

// Probe is the terminal result of one classification exchange.
type Probe struct {
	Outcome   ProbeOutcome
	AuthOK    bool   // meaningful only for ProbeRunning
	AuthError string // set when the daemon is running but not authenticated
}

// Trigger substrings for the authorization heuristic. The daemon reports
// auth failures only through free-form error text, so classification has to
// sniff the message. Matched case-insensitively; keep in sync with the
// daemon's error wording.
const (
	authHintUnauthorized = "unauthorized"
	authHintInvalidToken = "invalid token"
)

// isAuthErrorMessage reports whether a daemon error message describes an
// authorization failure rather than a protocol mismatch.
func isAuthErrorMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, authHintUnauthorized) ||
		strings.Contains(lower, authHintInvalidToken)
}

// probeDaemon runs the ping → auth → ping exchange against the configured
// listen address over a fresh connection. Connect failures classify as
// unreachable; a listener whose errors don't look like auth failures
// classifies as not-a-daemon and must never be confused with a free port.
func probeDaemon(listenAddr, token string) Probe {
	connectAddr, ok := ConnectAddr(listenAddr)
	if !ok {
		return Probe{Outcome: ProbeUnreachable}
	}

	client, err := dialRPC(connectAddr)
	if err != nil {
		return Probe{Outcome: ProbeUnreachable}
	}
	defer client.Close()

	_, err = client.Call("ping", struct{}{})
	if err == nil {
		return Probe{Outcome: ProbeRunning, AuthOK: true}
	}
	if !isAuthErrorMessage(err.Error()) {
		return Probe{Outcome: ProbeNotDaemon}
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Probe{
			Outcome:   ProbeRunning,
			AuthError: "daemon is running but requires a remote access token",
		}
	}

	authParams := struct {
		Token string `json:"token"`
	}{Token: token}
	if _, err := client.Call("auth", authParams); err != nil {
		if isAuthErrorMessage(err.Error()) {
			return Probe{
				Outcome:   ProbeRunning,
				AuthError: fmt.Sprintf("daemon is running but token authentication failed: %v", err),
			}
		}
		return Probe{Outcome: ProbeNotDaemon}
	}

	if _, err := client.Call("ping", struct{}{}); err != nil {
		return Probe{
			Outcome:   ProbeRunning,
			AuthError: fmt.Sprintf("daemon is running but ping failed after auth: %v", err),
		}
	}
	return Probe{Outcome: ProbeRunning, AuthOK: true}
}
