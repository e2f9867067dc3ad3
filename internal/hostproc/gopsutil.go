package hostproc

import (
	"context"
	"fmt"

	gnet "github.com/shirou/gopsutil/v4/net"
	gprocess "github.com/shirou/gopsutil/v4/process"
)

// SystemLocator reads the OS socket table via gopsutil. It is stateless and
// safe for concurrent use.
type SystemLocator struct{}

var _ Locator = SystemLocator{}
var _ Terminator = SystemLocator{}

// ErrUnavailable wraps failures to read the socket table at all, so callers
// can render "not available" distinctly from "no process on that port".
type ErrUnavailable struct{ Err error }

func (e ErrUnavailable) Error() string { return "process table unavailable: " + e.Err.Error() }
func (e ErrUnavailable) Unwrap() error { return e.Err }

// FindByPort scans listening TCP sockets for the port and resolves the owning
// process name. Returns nil when nothing listens there.
func (SystemLocator) FindByPort(ctx context.Context, port int) (*Record, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, ErrUnavailable{Err: err}
	}
	for _, c := range conns {
		if c.Status != "LISTEN" || int(c.Laddr.Port) != port || c.Pid <= 0 {
			continue
		}
		rec := &Record{Port: port, PID: c.Pid}
		if p, perr := gprocess.NewProcessWithContext(ctx, c.Pid); perr == nil {
			if name, nerr := p.NameWithContext(ctx); nerr == nil {
				rec.Name = name
			}
		}
		return rec, nil
	}
	return nil, nil
}

// Terminate sends the polite stop signal to pid.
func (SystemLocator) Terminate(ctx context.Context, pid int32) error {
	p, err := gprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.TerminateWithContext(ctx)
}

// Kill stops pid unconditionally.
func (SystemLocator) Kill(ctx context.Context, pid int32) error {
	p, err := gprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("pid %d: %w", pid, err)
	}
	return p.KillWithContext(ctx)
}
