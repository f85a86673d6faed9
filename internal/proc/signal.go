package proc

import "errors"

// ErrSignalUnsupported is returned by the PID signaling capability on
// platforms without direct per-PID signals. Callers must fall back to the
// in-protocol shutdown path there instead of emulating signals.
var ErrSignalUnsupported = errors.New("stopping a process by pid is not supported on this platform")
