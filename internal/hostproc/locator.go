package hostproc

import "context"

// Record identifies the OS process bound to a TCP port.
type Record struct {
	Port int    `json:"port"`
	PID  int32  `json:"pid"`
	Name string `json:"name"`
}

// Locator resolves which process owns a listening port. Implementations hide
// the OS-specific socket-table lookup so callers never branch on platform.
type Locator interface {
	// FindByPort returns the record for the listener on port, or nil when no
	// process owns it. A missing listener is not an error.
	FindByPort(ctx context.Context, port int) (*Record, error)
}

// Terminator sends termination requests to a located process.
type Terminator interface {
	// Terminate asks the process to exit (SIGTERM-equivalent).
	Terminate(ctx context.Context, pid int32) error
	// Kill stops the process unconditionally (SIGKILL-equivalent).
	Kill(ctx context.Context, pid int32) error
}
