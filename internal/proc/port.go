package proc

import (
	"log/slog"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// FindListenerPID resolves the pid of the process listening on the given
// local TCP port. The second return is false when nothing is listening or
// the platform does not expose socket owners.
func FindListenerPID(port int) (int, bool) {
	conns, err := psnet.Connections("tcp")
	if err != nil {
		slog.Debug("Failed to enumerate TCP connections", "error", err)
		return 0, false
	}

	for _, conn := range conns {
		if conn.Status == "LISTEN" && int(conn.Laddr.Port) == port && conn.Pid > 0 {
			return int(conn.Pid), true
		}
	}
	return 0, false
}
