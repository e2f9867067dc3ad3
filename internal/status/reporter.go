package status

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/hostproc"
	"github.com/railboard/railctl/internal/probe"
	"github.com/railboard/railctl/internal/registry"
)

// Health classifies a reachable service.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
	// HealthUnknown marks services with only a TCP check: reachable says
	// nothing about application health, and the two are never conflated.
	HealthUnknown Health = "unknown"
)

// ServiceStatus is the merged per-service line of a snapshot.
type ServiceStatus struct {
	Service    registry.Service         `json:"service"`
	Reachable  bool                     `json:"reachable"`
	Health     Health                   `json:"health,omitempty"`
	Latency    probe.LatencyClass       `json:"latency,omitempty"`
	Elapsed    time.Duration            `json:"elapsed,omitempty"`
	StatusCode int                      `json:"status_code,omitempty"`
	Container  *dockerx.ContainerRecord `json:"container,omitempty"`
	Process    *hostproc.Record         `json:"process,omitempty"`
	DeepErr    string                   `json:"deep_error,omitempty"`
	DeepOK     bool                     `json:"deep_ok,omitempty"`
}

// State renders the merged status vocabulary.
func (s ServiceStatus) State() string {
	if !s.Reachable {
		return "stopped"
	}
	switch s.Health {
	case HealthHealthy:
		return "running+healthy"
	case HealthUnhealthy:
		return "running+unhealthy"
	default:
		return "running"
	}
}

// Snapshot is one full status pass over the registry.
type Snapshot struct {
	TakenAt  time.Time       `json:"taken_at"`
	Services []ServiceStatus `json:"services"`
	// ContainersQueried distinguishes "runtime unavailable" from "zero
	// containers running"; ContainerErr carries the former's cause.
	ContainersQueried bool   `json:"containers_queried"`
	ContainerErr      string `json:"container_error,omitempty"`
}

// Options control a status pass.
type Options struct {
	// Detailed adds process records and protocol-level deep checks.
	Detailed bool
	// IncludeContainers cross-references the container runtime's listing.
	IncludeContainers bool
	ProbeTimeout      time.Duration
}

type tcpFunc func(ctx context.Context, host string, port int, timeout time.Duration) (probe.Result, error)
type httpFunc func(ctx context.Context, url string, timeout time.Duration) (probe.HealthResult, error)
type deepFunc func(ctx context.Context, addr string, timeout time.Duration) error

// Reporter produces merged snapshots across the registry. Probes for
// independent services are dispatched concurrently and joined before the
// snapshot is returned, so each pass is atomic.
type Reporter struct {
	reg     *registry.Registry
	docker  *dockerx.Client
	locator hostproc.Locator

	tcp      tcpFunc
	http     httpFunc
	postgres deepFunc
	redis    deepFunc
}

// NewReporter builds a Reporter. docker may be nil when container
// cross-referencing is never requested; locator may be nil when detailed
// passes are never requested.
func NewReporter(reg *registry.Registry, docker *dockerx.Client, locator hostproc.Locator) *Reporter {
	return &Reporter{
		reg:      reg,
		docker:   docker,
		locator:  locator,
		tcp:      probe.TCP,
		http:     probe.HTTP,
		postgres: probe.Postgres,
		redis:    probe.Redis,
	}
}

// Report runs one pass and returns the merged snapshot.
func (r *Reporter) Report(ctx context.Context, opts Options) (Snapshot, error) {
	snap := Snapshot{TakenAt: time.Now()}
	services := r.reg.Services()
	snap.Services = make([]ServiceStatus, len(services))

	var containers []dockerx.ContainerRecord
	if opts.IncludeContainers && r.docker != nil {
		snap.ContainersQueried = true
		recs, err := r.docker.List(ctx)
		if err != nil {
			if errors.Is(err, dockerx.ErrRuntimeUnavailable) {
				snap.ContainerErr = err.Error()
			} else {
				return Snapshot{}, err
			}
		} else {
			containers = recs
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			st, err := r.probeOne(gctx, svc, opts)
			if err != nil {
				return err
			}
			snap.Services[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	// Annotate container-backed services by published port.
	for i := range snap.Services {
		for j := range containers {
			for _, port := range containers[j].Ports {
				if port == snap.Services[i].Service.Port {
					snap.Services[i].Container = &containers[j]
				}
			}
		}
	}
	return snap, nil
}

func (r *Reporter) probeOne(ctx context.Context, svc registry.Service, opts Options) (ServiceStatus, error) {
	st := ServiceStatus{Service: svc}
	res, err := r.tcp(ctx, "localhost", svc.Port, opts.ProbeTimeout)
	if err != nil {
		return st, err
	}
	st.Reachable = res.Reachable
	st.Latency = res.Class
	st.Elapsed = res.Latency
	if !st.Reachable {
		return st, nil
	}

	st.Health = HealthUnknown
	if svc.Check == registry.CheckHTTP {
		hres, err := r.http(ctx, svc.HealthURL, opts.ProbeTimeout)
		if err != nil {
			return st, err
		}
		switch {
		case !hres.Reachable:
			// Port accepts but the HTTP endpoint does not answer.
			st.Health = HealthUnhealthy
		case hres.StatusOK:
			st.Health = HealthHealthy
		default:
			st.Health = HealthUnhealthy
		}
		st.StatusCode = hres.StatusCode
		st.Latency = hres.Class
		st.Elapsed = hres.Latency
	}

	if opts.Detailed {
		if r.locator != nil {
			if rec, lerr := r.locator.FindByPort(ctx, svc.Port); lerr == nil && rec != nil {
				st.Process = rec
			}
		}
		switch svc.Deep {
		case registry.DeepPostgres:
			r.applyDeep(ctx, &st, r.postgres, svc.DeepAddr, opts.ProbeTimeout)
		case registry.DeepRedis:
			r.applyDeep(ctx, &st, r.redis, svc.DeepAddr, opts.ProbeTimeout)
		}
	}
	return st, nil
}

func (r *Reporter) applyDeep(ctx context.Context, st *ServiceStatus, fn deepFunc, addr string, timeout time.Duration) {
	if err := fn(ctx, addr, timeout); err != nil {
		st.DeepErr = err.Error()
		st.Health = HealthUnhealthy
		return
	}
	st.DeepOK = true
	st.Health = HealthHealthy
}

// Watch repeats Report on a fixed interval until ctx is cancelled, invoking
// fn with each snapshot. Cancellation lands between passes, never mid-probe;
// the in-flight pass either completes or is abandoned whole.
func (r *Reporter) Watch(ctx context.Context, interval time.Duration, opts Options, fn func(Snapshot)) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		snap, err := r.Report(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(snap)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
