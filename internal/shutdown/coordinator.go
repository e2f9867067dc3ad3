package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/hostproc"
	"github.com/railboard/railctl/internal/probe"
	"github.com/railboard/railctl/internal/registry"
)

// Scope selects which execution models a shutdown targets.
type Scope string

const (
	ScopeContainers Scope = "containers"
	ScopeProcesses  Scope = "processes"
	ScopeBoth       Scope = "both"
)

// TargetKind tells how a matched instance is managed.
type TargetKind string

const (
	KindProcess   TargetKind = "process"
	KindContainer TargetKind = "container"
)

// State is the terminal state recorded for one target.
type State string

const (
	StateStopped    State = "stopped"
	StateUnresolved State = "unresolved"
)

// Target is one running instance matched by the requested scope.
type Target struct {
	Kind      TargetKind
	Name      string // registry service name when known, else container name
	Port      int
	PID       int32  // processes only
	Container string // containers only
}

// Outcome records the lifecycle of one target through the shutdown state
// machine. ForcedAt stays zero when graceful termination sufficed.
type Outcome struct {
	Target
	GracefulAt time.Time
	ForcedAt   time.Time
	Final      State
	Err        error
}

// Report aggregates shutdown outcomes. Aborted means the operator declined
// the confirmation; nothing was touched.
type Report struct {
	Outcomes []Outcome
	Aborted  bool
	Purged   bool
}

// Unresolved returns the targets still present after forced termination.
func (r Report) Unresolved() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Final == StateUnresolved {
			out = append(out, o)
		}
	}
	return out
}

// Options control one shutdown run.
type Options struct {
	Scope Scope
	// Force skips the confirmation step.
	Force bool
	// PurgeState removes persisted volumes after everything stopped.
	// Destructive; ignored for a processes-only scope.
	PurgeState bool
}

// Confirm is asked before anything is stopped; returning false aborts the
// run. Injected so automation and tests never need a terminal.
type Confirm func(summary string) bool

type probeFunc func(ctx context.Context, host string, port int, timeout time.Duration) (probe.Result, error)

// Coordinator walks matched instances through
// graceful → re-verify → forced → re-verify, surfacing per-target outcomes.
type Coordinator struct {
	reg     *registry.Registry
	locator hostproc.Locator
	term    hostproc.Terminator
	docker  *dockerx.Client

	confirm      Confirm
	grace        time.Duration
	probeTimeout time.Duration
	probe        probeFunc
	wait         func(ctx context.Context, d time.Duration) error
}

// Option tunes a Coordinator.
type Option func(*Coordinator)

// WithGracePeriod sets how long graceful termination may take before
// escalation.
func WithGracePeriod(d time.Duration) Option {
	return func(c *Coordinator) { c.grace = d }
}

// WithConfirm installs the confirmation callback.
func WithConfirm(f Confirm) Option {
	return func(c *Coordinator) { c.confirm = f }
}

func withProbeFunc(fn probeFunc) Option {
	return func(c *Coordinator) { c.probe = fn }
}

func withWaitFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.wait = fn }
}

// New builds a Coordinator over the given registry and back ends. docker may
// be nil when container scopes are never requested.
func New(reg *registry.Registry, loc hostproc.Locator, term hostproc.Terminator, docker *dockerx.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:          reg,
		locator:      loc,
		term:         term,
		docker:       docker,
		confirm:      func(string) bool { return false },
		grace:        5 * time.Second,
		probeTimeout: probe.DefaultTimeout,
		probe:        probe.TCP,
		wait: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shutdown enumerates running instances for the scope and drives each to
// Stopped or Unresolved. Only instances found running are targeted; services
// that were already down never appear in the report.
func (c *Coordinator) Shutdown(ctx context.Context, opts Options) (Report, error) {
	targets, err := c.enumerate(ctx, opts.Scope)
	if err != nil {
		return Report{}, err
	}
	if len(targets) == 0 {
		return Report{}, nil
	}

	if !opts.Force {
		if !c.confirm(summarize(targets)) {
			slog.Info("shutdown skipped by user", "scope", opts.Scope)
			return Report{Aborted: true}, nil
		}
	}

	outcomes := make([]Outcome, len(targets))
	for i, t := range targets {
		outcomes[i] = Outcome{Target: t}
	}

	// Phase 1: graceful requests to every target before any escalation.
	for i := range outcomes {
		outcomes[i].GracefulAt = time.Now()
		if err := c.terminate(ctx, outcomes[i].Target, false); err != nil {
			slog.Warn("graceful stop failed", "target", outcomes[i].Name, "error", err)
			outcomes[i].Err = err
		}
	}

	if err := c.wait(ctx, c.grace); err != nil {
		return Report{Outcomes: outcomes}, err
	}

	// Phase 2: re-verify and escalate what is still present.
	remaining := c.reverify(ctx, outcomes)
	for _, i := range remaining {
		outcomes[i].ForcedAt = time.Now()
		if err := c.terminate(ctx, outcomes[i].Target, true); err != nil {
			slog.Warn("forced stop failed", "target", outcomes[i].Name, "error", err)
			outcomes[i].Err = err
		}
	}
	if len(remaining) > 0 {
		if err := c.wait(ctx, c.grace/2); err != nil {
			return Report{Outcomes: outcomes}, err
		}
	}

	// Final verdict: anything still present is Unresolved, never dropped.
	for _, i := range c.reverify(ctx, outcomes) {
		outcomes[i].Final = StateUnresolved
	}

	report := Report{Outcomes: outcomes}
	if opts.PurgeState && opts.Scope != ScopeProcesses {
		if len(report.Unresolved()) == 0 {
			if err := c.docker.Down(ctx, true); err != nil {
				return report, fmt.Errorf("purge volumes: %w", err)
			}
			report.Purged = true
		} else {
			slog.Warn("purge skipped: targets still running")
		}
	}
	return report, nil
}

// enumerate matches running instances for the scope across the registry.
func (c *Coordinator) enumerate(ctx context.Context, scope Scope) ([]Target, error) {
	var targets []Target
	containerPorts := make(map[int]bool)

	if scope == ScopeContainers || scope == ScopeBoth {
		records, err := c.docker.List(ctx)
		if err != nil {
			if errors.Is(err, dockerx.ErrRuntimeUnavailable) && scope == ScopeBoth {
				// Container side is unavailable; the process side can still
				// proceed.
				slog.Warn("container runtime unavailable", "error", err)
			} else {
				return nil, err
			}
		}
		for _, rec := range records {
			if !isRunning(rec.State) {
				continue
			}
			t := Target{Kind: KindContainer, Name: rec.Service, Container: rec.Name}
			for _, port := range rec.Ports {
				if svc, ok := c.reg.ByPort(port); ok {
					t.Name = svc.Name
					t.Port = port
					containerPorts[port] = true
					break
				}
			}
			if t.Name == "" {
				t.Name = rec.Name
			}
			targets = append(targets, t)
		}
	}

	if scope == ScopeProcesses || scope == ScopeBoth {
		for _, svc := range c.reg.Services() {
			if containerPorts[svc.Port] {
				continue // container already owns that port
			}
			rec, err := c.locator.FindByPort(ctx, svc.Port)
			if err != nil {
				var unavailable hostproc.ErrUnavailable
				if errors.As(err, &unavailable) {
					return nil, err
				}
				slog.Warn("process lookup failed", "service", svc.Name, "error", err)
				continue
			}
			if rec == nil {
				continue
			}
			targets = append(targets, Target{Kind: KindProcess, Name: svc.Name, Port: svc.Port, PID: rec.PID})
		}
	}
	return targets, nil
}

// terminate issues the stop request appropriate for the target's kind and the
// escalation stage.
func (c *Coordinator) terminate(ctx context.Context, t Target, forced bool) error {
	switch t.Kind {
	case KindProcess:
		if forced {
			return c.term.Kill(ctx, t.PID)
		}
		return c.term.Terminate(ctx, t.PID)
	case KindContainer:
		if forced {
			return c.docker.Remove(ctx, t.Container)
		}
		return c.docker.Stop(ctx, t.Container)
	}
	return fmt.Errorf("unknown target kind %q", t.Kind)
}

// reverify returns the indexes of outcomes whose target is still present.
// Already-finalized outcomes are skipped; gone targets are marked Stopped.
func (c *Coordinator) reverify(ctx context.Context, outcomes []Outcome) []int {
	var containerNames map[string]bool
	var still []int
	for i := range outcomes {
		if outcomes[i].Final != "" {
			continue
		}
		switch outcomes[i].Kind {
		case KindProcess:
			res, err := c.probe(ctx, "localhost", outcomes[i].Port, c.probeTimeout)
			if err == nil && !res.Reachable {
				outcomes[i].Final = StateStopped
			} else {
				still = append(still, i)
			}
		case KindContainer:
			if containerNames == nil {
				containerNames = make(map[string]bool)
				if records, err := c.docker.List(ctx); err == nil {
					for _, rec := range records {
						if isRunning(rec.State) {
							containerNames[rec.Name] = true
						}
					}
				}
			}
			if !containerNames[outcomes[i].Container] {
				outcomes[i].Final = StateStopped
			} else {
				still = append(still, i)
			}
		}
	}
	return still
}

func isRunning(state string) bool {
	switch strings.ToLower(state) {
	case "running", "up", "restarting":
		return true
	}
	return false
}

func summarize(targets []Target) string {
	var b strings.Builder
	b.WriteString("The following will be stopped:\n")
	for _, t := range targets {
		switch t.Kind {
		case KindProcess:
			fmt.Fprintf(&b, "  %s (pid %d, port %d)\n", t.Name, t.PID, t.Port)
		case KindContainer:
			fmt.Fprintf(&b, "  %s (container %s)\n", t.Name, t.Container)
		}
	}
	return b.String()
}
