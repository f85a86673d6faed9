// Package lifecycle holds the state model shared by the daemon and runner
// supervisors.
package lifecycle

import "time"

// State is the coarse lifecycle state of a supervised process. Exactly one
// state holds at any time; status records are replaced wholesale on every
// transition rather than mutated field by field.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StateError   State = "error"
)

// NowUnixMS returns the current wall clock in milliseconds since the epoch,
// the unit used for started-at timestamps in status records.
func NowUnixMS() int64 {
	return time.Now().UnixMilli()
}
