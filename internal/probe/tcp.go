package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// LatencyClass is a coarse bucket for how quickly a probe concluded.
type LatencyClass string

const (
	LatencyFast    LatencyClass = "fast"
	LatencySlow    LatencyClass = "slow"
	LatencyTimeout LatencyClass = "timeout"
)

// DefaultTimeout bounds a single probe attempt when the caller passes zero.
const DefaultTimeout = 750 * time.Millisecond

// slowAfter separates "fast" from "slow" completions.
const slowAfter = 250 * time.Millisecond

// Result is the outcome of a single TCP reachability probe.
type Result struct {
	Reachable  bool
	Latency    time.Duration
	Class      LatencyClass
	ObservedAt time.Time
}

// TCP attempts one TCP connection to host:port within timeout. A refused or
// timed-out connection is a normal false result, not an error; only a
// malformed host yields a non-nil error. No retries are performed.
func TCP(ctx context.Context, host string, port int, timeout time.Duration) (Result, error) {
	if port <= 0 || port > 65535 {
		return Result{}, fmt.Errorf("invalid port %d", port)
	}
	if host == "" {
		host = "localhost"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	started := time.Now()
	conn, err := d.DialContext(ctx, "tcp", addr)
	elapsed := time.Since(started)
	res := Result{Latency: elapsed, ObservedAt: started}
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
			return Result{}, fmt.Errorf("resolve %s: %w", host, err)
		}
		res.Class = classify(false, elapsed, timeout)
		return res, nil
	}
	_ = conn.Close()
	res.Reachable = true
	res.Class = classify(true, elapsed, timeout)
	return res, nil
}

func classify(reachable bool, elapsed, timeout time.Duration) LatencyClass {
	if !reachable && elapsed >= timeout {
		return LatencyTimeout
	}
	if elapsed > slowAfter {
		return LatencySlow
	}
	return LatencyFast
}

// isTimeout reports whether err is a deadline-style failure.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
