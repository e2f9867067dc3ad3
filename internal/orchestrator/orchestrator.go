package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/railboard/railctl/internal/launcher"
	"github.com/railboard/railctl/internal/probe"
	"github.com/railboard/railctl/internal/registry"
)

// probeFunc matches probe.TCP; injected so tests can fake readiness.
type probeFunc func(ctx context.Context, host string, port int, timeout time.Duration) (probe.Result, error)

// ServiceResult records the launch and readiness outcome for one service.
type ServiceResult struct {
	Service   registry.Service
	Attempted bool
	LaunchErr error
	Ready     bool
	ReadyErr  error
}

// StartupReport aggregates per-service outcomes for a whole run. A launch or
// readiness failure never aborts the run; it is surfaced here.
type StartupReport struct {
	Results    []ServiceResult
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether any service failed to launch or become ready.
func (r StartupReport) Failed() bool {
	for _, res := range r.Results {
		if res.LaunchErr != nil || (res.Attempted && !res.Ready) {
			return true
		}
	}
	return false
}

// Orchestrator sequences startup of interdependent services: groups ascend,
// and group N+1 is not launched until group N's readiness barrier resolves.
type Orchestrator struct {
	launcher     launcher.Launcher
	host         string
	pollInterval time.Duration
	probeTimeout time.Duration
	probe        probeFunc
}

// Option tunes an Orchestrator.
type Option func(*Orchestrator)

// WithPollInterval sets the readiness polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.pollInterval = d }
}

// WithProbeTimeout bounds each individual readiness probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.probeTimeout = d }
}

func withProbeFunc(fn probeFunc) Option {
	return func(o *Orchestrator) { o.probe = fn }
}

// New returns an Orchestrator that launches through l.
func New(l launcher.Launcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		launcher:     l,
		host:         "localhost",
		pollInterval: 500 * time.Millisecond,
		probeTimeout: probe.DefaultTimeout,
		probe:        probe.TCP,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartAll launches every service in reg, one dependency group at a time.
// Within a group, launches are issued sequentially and then the whole group is
// awaited concurrently; a failed service is recorded and skipped, never fatal.
// The only fatal condition is ctx cancellation.
func (o *Orchestrator) StartAll(ctx context.Context, reg *registry.Registry) (StartupReport, error) {
	report := StartupReport{StartedAt: time.Now()}
	for _, group := range reg.Groups() {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = time.Now()
			return report, err
		}
		results := make([]ServiceResult, len(group))
		for i, svc := range group {
			results[i] = ServiceResult{Service: svc, Attempted: true}
			if err := o.launcher.Launch(ctx, svc); err != nil {
				slog.Warn("launch failed", "service", svc.Name, "error", err)
				results[i].LaunchErr = err
			}
		}
		o.awaitGroup(ctx, results)
		report.Results = append(report.Results, results...)
	}
	report.FinishedAt = time.Now()
	return report, nil
}

// awaitGroup blocks until every launched service in the group is reachable or
// its ready timeout elapses. Probes for different services run concurrently.
func (o *Orchestrator) awaitGroup(ctx context.Context, results []ServiceResult) {
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		if results[i].LaunchErr != nil {
			continue
		}
		res := &results[i]
		g.Go(func() error {
			res.Ready, res.ReadyErr = o.waitReady(gctx, res.Service)
			return nil
		})
	}
	_ = g.Wait()
}

// waitReady polls the service's port until it accepts a connection or the
// per-service timeout is spent. This replaces the fixed post-start sleeps of
// the shell tooling with an explicit readiness contract.
func (o *Orchestrator) waitReady(ctx context.Context, svc registry.Service) (bool, error) {
	timeout := svc.ReadyTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		res, err := o.probe(ctx, o.host, svc.Port, o.probeTimeout)
		if err == nil && res.Reachable {
			slog.Debug("service ready", "service", svc.Name, "port", svc.Port)
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, fmt.Errorf("%s not ready on port %d after %s", svc.Name, svc.Port, timeout)
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}
