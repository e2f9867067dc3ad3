package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/railboard/railctl/internal/probe"
	"github.com/railboard/railctl/internal/registry"
)

// fakeLauncher records launch order and optionally fails named services.
type fakeLauncher struct {
	mu     sync.Mutex
	order  []string
	failOn map[string]error
}

func (f *fakeLauncher) Launch(_ context.Context, svc registry.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, svc.Name)
	if err, ok := f.failOn[svc.Name]; ok {
		return err
	}
	return nil
}

// launchedProbe reports a port reachable once its service was launched.
func launchedProbe(f *fakeLauncher, reg *registry.Registry) probeFunc {
	return func(_ context.Context, _ string, port int, _ time.Duration) (probe.Result, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		svc, ok := reg.ByPort(port)
		if !ok {
			return probe.Result{}, nil
		}
		for _, name := range f.order {
			if name == svc.Name {
				return probe.Result{Reachable: true, Class: probe.LatencyFast}, nil
			}
		}
		return probe.Result{}, nil
	}
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Service{
		{Name: "db", Port: 10001, Check: registry.CheckTCP, Group: 0, ReadyTimeout: 2 * time.Second},
		{Name: "cache", Port: 10002, Check: registry.CheckTCP, Group: 0, ReadyTimeout: 2 * time.Second},
		{Name: "api", Port: 10003, Check: registry.CheckTCP, Group: 1, ReadyTimeout: 2 * time.Second},
		{Name: "web", Port: 10004, Check: registry.CheckTCP, Group: 2, ReadyTimeout: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

func TestStartAllRespectsGroupOrder(t *testing.T) {
	reg := testRegistry(t)
	fl := &fakeLauncher{}
	o := New(fl, WithPollInterval(5*time.Millisecond), withProbeFunc(launchedProbe(fl, reg)))

	report, err := o.StartAll(context.Background(), reg)
	if err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if report.Failed() {
		t.Fatalf("unexpected failure: %+v", report.Results)
	}
	if len(fl.order) != 4 {
		t.Fatalf("launched %v", fl.order)
	}

	pos := make(map[string]int, len(fl.order))
	for i, name := range fl.order {
		pos[name] = i
	}
	if pos["api"] < pos["db"] || pos["api"] < pos["cache"] {
		t.Fatalf("group 1 launched before group 0 settled: %v", fl.order)
	}
	if pos["web"] < pos["api"] {
		t.Fatalf("group 2 launched before group 1: %v", fl.order)
	}
}

func TestStartAllSubsetSkipsOtherTiers(t *testing.T) {
	reg := testRegistry(t)
	fl := &fakeLauncher{}
	o := New(fl, WithPollInterval(5*time.Millisecond), withProbeFunc(launchedProbe(fl, reg)))

	data := reg.Filter(func(s registry.Service) bool { return s.Group == 0 })
	if _, err := o.StartAll(context.Background(), data); err != nil {
		t.Fatalf("StartAll data tier: %v", err)
	}
	api := reg.Filter(func(s registry.Service) bool { return s.Name == "api" })
	if _, err := o.StartAll(context.Background(), api); err != nil {
		t.Fatalf("StartAll api: %v", err)
	}

	for _, name := range fl.order {
		if name == "web" {
			t.Fatalf("web tier launched: %v", fl.order)
		}
	}
	pos := make(map[string]int, len(fl.order))
	for i, name := range fl.order {
		pos[name] = i
	}
	if pos["api"] < pos["db"] {
		t.Fatalf("api launched before data tier: %v", fl.order)
	}
}

func TestStartAllRecordsLaunchFailureAndContinues(t *testing.T) {
	reg := testRegistry(t)
	boom := errors.New("compose up failed")
	fl := &fakeLauncher{failOn: map[string]error{"cache": boom}}
	o := New(fl, WithPollInterval(5*time.Millisecond), withProbeFunc(launchedProbe(fl, reg)))

	report, err := o.StartAll(context.Background(), reg)
	if err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if !report.Failed() {
		t.Fatal("failure not surfaced")
	}
	var cache *ServiceResult
	for i := range report.Results {
		if report.Results[i].Service.Name == "cache" {
			cache = &report.Results[i]
		}
	}
	if cache == nil || !errors.Is(cache.LaunchErr, boom) {
		t.Fatalf("cache result: %+v", cache)
	}
	// The run never aborts on a single failure.
	if len(report.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(report.Results))
	}
}

func TestStartAllTimesOutUnreadyService(t *testing.T) {
	reg, err := registry.New([]registry.Service{
		{Name: "db", Port: 10001, Check: registry.CheckTCP, ReadyTimeout: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	fl := &fakeLauncher{}
	never := func(context.Context, string, int, time.Duration) (probe.Result, error) {
		return probe.Result{}, nil
	}
	o := New(fl, WithPollInterval(5*time.Millisecond), withProbeFunc(never))

	report, err := o.StartAll(context.Background(), reg)
	if err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	res := report.Results[0]
	if res.Ready || res.ReadyErr == nil {
		t.Fatalf("expected readiness timeout, got %+v", res)
	}
}

func TestStartAllStopsOnCancel(t *testing.T) {
	reg := testRegistry(t)
	fl := &fakeLauncher{}
	o := New(fl, WithPollInterval(5*time.Millisecond), withProbeFunc(launchedProbe(fl, reg)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.StartAll(ctx, reg); err == nil {
		t.Fatal("cancelled context not surfaced")
	}
}
