package daemon

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is used when the configured remote host carries no explicit
// port.
const DefaultPort = 4732

// PortFromHost extracts the trailing port from a host string. It understands
// explicit host:port, bracketed IPv6 with port, and bare IPv6 addresses whose
// last colon-separated field is a port. A bare hostname yields no port.
func PortFromHost(host string) (int, bool) {
	host = strings.TrimSpace(host)
	if host == "" {
		return 0, false
	}

	if _, portStr, err := net.SplitHostPort(host); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port <= 65535 {
			return port, true
		}
	}

	idx := strings.LastIndex(host, ":")
	if idx < 0 {
		return 0, false
	}
	port, err := strconv.Atoi(host[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// ListenAddr derives the daemon listen address from the configured remote
// host, falling back to the default port.
func ListenAddr(remoteHost string) string {
	port, ok := PortFromHost(remoteHost)
	if !ok {
		port = DefaultPort
	}
	return fmt.Sprintf("0.0.0.0:%d", port)
}

// ConnectAddr converts a listen address into the loopback address used to
// reach the daemon.
func ConnectAddr(listenAddr string) (string, bool) {
	port, ok := PortFromHost(listenAddr)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("127.0.0.1:%d", port), true
}

// EnsureListenAddrAvailable bind-probes the exact listen address and releases
// it immediately, so a doomed spawn fails fast with a clear error instead of
// a child process startup panic.
func EnsureListenAddrAvailable(listenAddr string) error {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("cannot start daemon because %s is unavailable: %w", listenAddr, err)
	}
	listener.Close()
	return nil
}
