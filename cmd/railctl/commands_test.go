package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/hostproc"
	"github.com/railboard/railctl/internal/metrics"
	"github.com/railboard/railctl/internal/registry"
	"github.com/railboard/railctl/internal/shutdown"
	"github.com/railboard/railctl/internal/status"
)

func TestExitCodeMapping(t *testing.T) {
	if exitCode(nil) != exitOK {
		t.Fatal("nil error")
	}
	if exitCode(errors.New("boom")) != exitFailed {
		t.Fatal("plain error")
	}
	if exitCode(exitWith(exitAborted, nil)) != exitAborted {
		t.Fatal("exitError")
	}
	if exitCode(usageErr("bad flag")) != exitUsage {
		t.Fatal("usage error")
	}
	wrapped := fmt.Errorf("stop: %w", dockerx.ErrRuntimeUnavailable)
	if exitCode(wrapped) != exitRuntime {
		t.Fatal("runtime unavailable")
	}
	procErr := fmt.Errorf("enumerate: %w", hostproc.ErrUnavailable{Err: errors.New("no proc")})
	if exitCode(procErr) != exitRuntime {
		t.Fatal("process table unavailable")
	}
}

func TestStopScopeSelection(t *testing.T) {
	cases := []struct {
		f    StopFlags
		want shutdown.Scope
	}{
		{StopFlags{All: true}, shutdown.ScopeBoth},
		{StopFlags{Docker: true, Processes: true}, shutdown.ScopeBoth},
		{StopFlags{Docker: true}, shutdown.ScopeContainers},
		{StopFlags{Processes: true}, shutdown.ScopeProcesses},
		{StopFlags{}, ""},
	}
	for _, tc := range cases {
		got, err := stopScope(tc.f)
		if err != nil || got != tc.want {
			t.Fatalf("stopScope(%+v) = %q, %v", tc.f, got, err)
		}
	}
}

func TestFilterDevTiers(t *testing.T) {
	reg := registry.Default(false)

	names := func(r *registry.Registry) []string {
		var out []string
		for _, s := range r.Services() {
			out = append(out, s.Name)
		}
		return out
	}

	db := filterDev(reg, StartDevFlags{DBOnly: true})
	if got := names(db); len(got) != 2 || got[0] != "postgres" || got[1] != "redis" {
		t.Fatalf("dbOnly: %v", got)
	}
	be := filterDev(reg, StartDevFlags{BackendOnly: true})
	if got := names(be); len(got) != 1 || got[0] != "backend" {
		t.Fatalf("backendOnly: %v", got)
	}
	skip := filterDev(reg, StartDevFlags{SkipDB: true})
	for _, n := range names(skip) {
		if n == "postgres" || n == "redis" {
			t.Fatalf("skipDB kept data tier: %v", names(skip))
		}
	}
	all := filterDev(reg, StartDevFlags{})
	if len(names(all)) != reg.Len() {
		t.Fatalf("no flags should keep everything: %v", names(all))
	}
}

func TestCountOnly(t *testing.T) {
	if countOnly(StartDevFlags{DBOnly: true, FrontendOnly: true}) != 2 {
		t.Fatal("count")
	}
	if countOnly(StartDevFlags{}) != 0 {
		t.Fatal("count zero")
	}
}

func TestAskYesNo(t *testing.T) {
	var out bytes.Buffer
	if !askYesNo(strings.NewReader("y\n"), &out, "proceed") {
		t.Fatal("y rejected")
	}
	if askYesNo(strings.NewReader("n\n"), &out, "proceed") {
		t.Fatal("n accepted")
	}
	if askYesNo(strings.NewReader("\n"), &out, "proceed") {
		t.Fatal("default must be no")
	}
	if askYesNo(strings.NewReader(""), &out, "proceed") {
		t.Fatal("EOF must be no")
	}
}

func TestAskScope(t *testing.T) {
	var out bytes.Buffer
	cases := map[string]string{
		"c\n":    "containers",
		"p\n":    "processes",
		"both\n": "both",
		"a\n":    "",
		"x\n":    "",
		"":       "",
	}
	for in, want := range cases {
		if got := askScope(strings.NewReader(in), &out); got != want {
			t.Fatalf("askScope(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildRootWiresSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"start-docker": false,
		"start-dev":    false,
		"check-status": false,
		"stop":         false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("subcommand %s not registered", name)
		}
	}
}

func TestDegradedIgnoresMonitoringServices(t *testing.T) {
	// The status registry always includes the monitoring entries so they
	// show in the table, while the exit code must only track the core
	// services of a stack started without them.
	reg := registry.Default(true)
	var snap status.Snapshot
	for _, svc := range reg.Services() {
		st := status.ServiceStatus{Service: svc, Reachable: !svc.Monitoring}
		if st.Reachable {
			st.Health = status.HealthHealthy
		}
		snap.Services = append(snap.Services, st)
	}
	if degraded(snap) {
		t.Fatal("stopped monitoring services degraded a healthy stack")
	}

	for i := range snap.Services {
		if snap.Services[i].Service.Name == "backend" {
			snap.Services[i].Reachable = false
		}
	}
	if !degraded(snap) {
		t.Fatal("stopped core service not reported as degraded")
	}
}

func TestObserveRecordsProbeDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	snap := status.Snapshot{Services: []status.ServiceStatus{
		{
			Service:   registry.Service{Name: "backend"},
			Reachable: true,
			Health:    status.HealthHealthy,
			Elapsed:   20 * time.Millisecond,
		},
	}}
	observe(snap)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "railctl_status_probe_duration_seconds" && len(mf.GetMetric()) > 0 {
			return
		}
	}
	t.Fatal("no probe duration samples recorded")
}

func TestStartDevRejectsConflictingFlags(t *testing.T) {
	c := command{flags: &GlobalFlags{}}
	err := c.StartDev(context.Background(), StartDevFlags{DBOnly: true, BackendOnly: true})
	if exitCode(err) != exitUsage {
		t.Fatalf("conflicting flags: %v", err)
	}
	err = c.StartDev(context.Background(), StartDevFlags{SkipDB: true, DBOnly: true})
	if exitCode(err) != exitUsage {
		t.Fatalf("skipDB with dbOnly: %v", err)
	}
}
