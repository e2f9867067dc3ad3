package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/railboard/railctl/internal/config"
	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/history"
	"github.com/railboard/railctl/internal/hostproc"
	"github.com/railboard/railctl/internal/launcher"
	"github.com/railboard/railctl/internal/logger"
	"github.com/railboard/railctl/internal/metrics"
	"github.com/railboard/railctl/internal/orchestrator"
	"github.com/railboard/railctl/internal/registry"
	"github.com/railboard/railctl/internal/server"
	"github.com/railboard/railctl/internal/shutdown"
	"github.com/railboard/railctl/internal/status"
)

type command struct {
	flags *GlobalFlags
}

// setup loads the config file and installs the logger.
func (c command) setup() (*config.FileConfig, error) {
	fc, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, usageErr("%v", err)
	}
	logger.Setup(c.flags.Debug, !c.flags.NoColor)
	return fc, nil
}

// openJournal opens the lifecycle journal. Journal failures never block a
// lifecycle operation; they degrade to a warning.
func openJournal(ctx context.Context, fc *config.FileConfig) *history.Journal {
	j, err := history.Open(fc.JournalPath)
	if err != nil {
		slog.Warn("journal unavailable", "path", fc.JournalPath, "error", err)
		return nil
	}
	if err := j.EnsureSchema(ctx); err != nil {
		slog.Warn("journal schema", "error", err)
		_ = j.Close()
		return nil
	}
	return j
}

// StartDocker starts the full stack (or the infrastructure tier with --dev)
// through the compose project.
func (c command) StartDocker(ctx context.Context, f StartDockerFlags) error {
	fc, err := c.setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := fc.Registry(f.Monitor)
	if err != nil {
		return usageErr("%v", err)
	}
	docker := dockerx.New(fc.Project)
	if !docker.Available(ctx) {
		return fmt.Errorf("start-docker: %w", dockerx.ErrRuntimeUnavailable)
	}
	if f.Dev {
		reg = reg.Filter(func(s registry.Service) bool {
			return launcher.IsContainerCommand(s.Command)
		})
	}
	if f.Clean {
		slog.Info("wiping persisted volumes before start")
		if err := docker.Down(ctx, true); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}

	orch := orchestrator.New(
		&launcher.Compose{Client: docker, Build: f.Build},
		orchestrator.WithProbeTimeout(fc.ProbeTimeout),
	)
	report, err := orch.StartAll(ctx, reg)
	if err != nil {
		return err
	}

	journal := openJournal(ctx, fc)
	recordStartup(ctx, journal, report)
	printStartup(os.Stdout, report, c.palette())

	if f.Logs && !report.Failed() {
		if err := docker.Logs(ctx, os.Stdout, true); err != nil && ctx.Err() == nil {
			return err
		}
	}
	if report.Failed() {
		return exitWith(exitFailed, nil)
	}
	return nil
}

// StartDev starts the infrastructure tier in containers and the application
// tier as host processes.
func (c command) StartDev(ctx context.Context, f StartDevFlags) error {
	if n := countOnly(f); n > 1 {
		return usageErr("--dbOnly, --backendOnly, --frontendOnly, and --optimizerOnly are mutually exclusive")
	} else if n == 1 && f.SkipDB {
		return usageErr("--skipDB cannot be combined with a *Only flag")
	}
	fc, err := c.setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := fc.Registry(false)
	if err != nil {
		return usageErr("%v", err)
	}
	reg = filterDev(reg, f)
	if reg.Len() == 0 {
		return usageErr("no services selected")
	}

	if f.Status {
		return c.statusPass(ctx, fc, reg, StatusFlags{Docker: true})
	}

	docker := dockerx.New(fc.Project)
	needsDocker := false
	for _, s := range reg.Services() {
		if launcher.IsContainerCommand(s.Command) {
			needsDocker = true
		}
	}
	if needsDocker && !docker.Available(ctx) {
		return fmt.Errorf("start-dev: %w", dockerx.ErrRuntimeUnavailable)
	}

	wd, _ := os.Getwd()
	logCfg := fc.LogConfig()
	if f.LogsDir != "" {
		logCfg.Dir = f.LogsDir
	}
	orch := orchestrator.New(
		&launcher.Mixed{
			Containers: &launcher.Compose{Client: docker},
			Native:     &launcher.Native{BaseDir: wd, Log: logCfg, Env: fc.Env},
		},
		orchestrator.WithProbeTimeout(fc.ProbeTimeout),
	)
	report, err := orch.StartAll(ctx, reg)
	if err != nil {
		return err
	}

	journal := openJournal(ctx, fc)
	recordStartup(ctx, journal, report)
	printStartup(os.Stdout, report, c.palette())

	if report.Failed() {
		return exitWith(exitFailed, nil)
	}
	return nil
}

// CheckStatus reports the health of every registered service.
func (c command) CheckStatus(ctx context.Context, f StatusFlags) error {
	fc, err := c.setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := fc.Registry(true)
	if err != nil {
		return usageErr("%v", err)
	}

	if f.History > 0 {
		return c.printHistory(ctx, fc, f.History)
	}
	if f.Serve != "" {
		return c.serveStatus(ctx, fc, reg, f)
	}
	if f.Continuous {
		return c.watchStatus(ctx, fc, reg, f)
	}
	return c.statusPass(ctx, fc, reg, f)
}

// Stop stops running services in the selected scope.
func (c command) Stop(ctx context.Context, f StopFlags) error {
	fc, err := c.setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scope, err := stopScope(f)
	if err != nil {
		return err
	}
	if scope == "" {
		picked := askScope(os.Stdin, os.Stdout)
		if picked == "" {
			fmt.Println("nothing stopped")
			return exitWith(exitAborted, nil)
		}
		scope = shutdown.Scope(picked)
	}

	reg, err := fc.Registry(true)
	if err != nil {
		return usageErr("%v", err)
	}
	docker := dockerx.New(fc.Project)
	if scope != shutdown.ScopeProcesses && !docker.Available(ctx) {
		return fmt.Errorf("stop: %w", dockerx.ErrRuntimeUnavailable)
	}

	locator := hostproc.SystemLocator{}
	coord := shutdown.New(reg, locator, locator, docker,
		shutdown.WithGracePeriod(fc.GracePeriod),
		shutdown.WithConfirm(func(summary string) bool {
			fmt.Println(summary)
			return askYesNo(os.Stdin, os.Stdout, "proceed")
		}),
	)
	report, err := coord.Shutdown(ctx, shutdown.Options{
		Scope:      scope,
		Force:      f.Force,
		PurgeState: f.Clean,
	})
	if err != nil {
		return err
	}
	if report.Aborted {
		fmt.Println("nothing stopped")
		return exitWith(exitAborted, nil)
	}

	journal := openJournal(ctx, fc)
	recordShutdown(ctx, journal, report)
	printShutdown(os.Stdout, report, c.palette())

	if len(report.Unresolved()) > 0 {
		return exitWith(exitFailed, nil)
	}
	return nil
}

func (c command) palette() *status.Palette {
	return status.NewPalette(!c.flags.NoColor)
}

func (c command) reporter(fc *config.FileConfig, reg *registry.Registry, f StatusFlags) (*status.Reporter, status.Options) {
	var docker *dockerx.Client
	if f.Docker || f.Serve != "" {
		docker = dockerx.New(fc.Project)
	}
	var locator hostproc.Locator
	if f.Detailed {
		locator = hostproc.SystemLocator{}
	}
	opts := status.Options{
		Detailed:          f.Detailed,
		IncludeContainers: docker != nil,
		ProbeTimeout:      fc.ProbeTimeout,
	}
	return status.NewReporter(reg, docker, locator), opts
}

func (c command) statusPass(ctx context.Context, fc *config.FileConfig, reg *registry.Registry, f StatusFlags) error {
	reporter, opts := c.reporter(fc, reg, f)
	snap, err := reporter.Report(ctx, opts)
	if err != nil {
		return err
	}
	if f.JSON {
		if err := status.RenderJSON(os.Stdout, snap); err != nil {
			return err
		}
	} else {
		status.Render(os.Stdout, snap, c.palette(), f.Detailed)
	}
	if f.Logs {
		docker := dockerx.New(fc.Project)
		if err := docker.Logs(ctx, os.Stdout, true); err != nil && ctx.Err() == nil {
			return err
		}
	}
	recordPass(ctx, openJournal(ctx, fc), snap)
	if degraded(snap) {
		return exitWith(exitFailed, nil)
	}
	return nil
}

func (c command) watchStatus(ctx context.Context, fc *config.FileConfig, reg *registry.Registry, f StatusFlags) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	reporter, opts := c.reporter(fc, reg, f)
	palette := c.palette()
	return reporter.Watch(ctx, f.Interval, opts, func(snap status.Snapshot) {
		observe(snap)
		if f.JSON {
			_ = status.RenderJSON(os.Stdout, snap)
			return
		}
		fmt.Println()
		status.Render(os.Stdout, snap, palette, f.Detailed)
	})
}

func (c command) serveStatus(ctx context.Context, fc *config.FileConfig, reg *registry.Registry, f StatusFlags) error {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}
	reporter, opts := c.reporter(fc, reg, f)
	journal := openJournal(ctx, fc)
	router := server.NewRouter(reporter, journal, opts, "")
	srv := server.NewServer(f.Serve, router)
	slog.Info("serving status", "addr", f.Serve)

	// Keep metrics warm between scrapes.
	go func() {
		_ = reporter.Watch(ctx, f.Interval, opts, observe)
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (c command) printHistory(ctx context.Context, fc *config.FileConfig, limit int) error {
	journal := openJournal(ctx, fc)
	if journal == nil {
		return fmt.Errorf("journal unavailable at %s", fc.JournalPath)
	}
	defer func() { _ = journal.Close() }()
	events, err := journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tKIND\tSERVICE\tOUTCOME\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			ev.At.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.Service, ev.Outcome, ev.Detail)
	}
	return tw.Flush()
}

func countOnly(f StartDevFlags) int {
	n := 0
	for _, b := range []bool{f.DBOnly, f.BackendOnly, f.FrontendOnly, f.OptimizerOnly} {
		if b {
			n++
		}
	}
	return n
}

func filterDev(reg *registry.Registry, f StartDevFlags) *registry.Registry {
	switch {
	case f.DBOnly:
		return reg.Filter(func(s registry.Service) bool { return s.Group == 0 })
	case f.BackendOnly:
		return reg.Filter(func(s registry.Service) bool { return s.Name == "backend" })
	case f.FrontendOnly:
		return reg.Filter(func(s registry.Service) bool { return s.Name == "frontend" })
	case f.OptimizerOnly:
		return reg.Filter(func(s registry.Service) bool { return s.Name == "optimizer" })
	case f.SkipDB:
		return reg.Filter(func(s registry.Service) bool { return s.Group != 0 })
	}
	return reg
}

func stopScope(f StopFlags) (shutdown.Scope, error) {
	switch {
	case f.All, f.Docker && f.Processes:
		return shutdown.ScopeBoth, nil
	case f.Docker:
		return shutdown.ScopeContainers, nil
	case f.Processes:
		return shutdown.ScopeProcesses, nil
	}
	return "", nil
}

// degraded reports whether any core service is stopped or unhealthy.
// Monitoring services are an optional overlay; a stack started without them
// is still healthy, so they never influence the exit code.
func degraded(snap status.Snapshot) bool {
	for _, s := range snap.Services {
		if s.Service.Monitoring {
			continue
		}
		if !s.Reachable || s.Health == status.HealthUnhealthy {
			return true
		}
	}
	return false
}

func observe(snap status.Snapshot) {
	metrics.IncPass()
	for _, s := range snap.Services {
		metrics.SetUp(s.Service.Name, s.Reachable)
		metrics.SetHealthy(s.Service.Name, s.Health == status.HealthHealthy)
		metrics.ObserveProbe(s.Service.Name, s.Elapsed.Seconds())
	}
}

// recordPass journals a one-line summary of a status pass.
func recordPass(ctx context.Context, journal *history.Journal, snap status.Snapshot) {
	if journal == nil {
		return
	}
	defer func() { _ = journal.Close() }()
	up := 0
	for _, s := range snap.Services {
		if s.Reachable {
			up++
		}
	}
	outcome := "healthy"
	if degraded(snap) {
		outcome = "degraded"
	}
	ev := history.Event{
		Kind:    history.EventStatus,
		Outcome: outcome,
		Detail:  fmt.Sprintf("%d/%d services up", up, len(snap.Services)),
	}
	if err := journal.Append(ctx, ev); err != nil {
		slog.Warn("journal append", "error", err)
	}
}

func recordStartup(ctx context.Context, journal *history.Journal, report orchestrator.StartupReport) {
	if journal == nil {
		return
	}
	defer func() { _ = journal.Close() }()
	for _, res := range report.Results {
		ev := history.Event{
			Kind:    history.EventStart,
			Service: res.Service.Name,
			Port:    res.Service.Port,
			Outcome: "ready",
		}
		switch {
		case res.LaunchErr != nil:
			ev.Outcome = "launch failed"
			ev.Detail = res.LaunchErr.Error()
		case !res.Ready:
			ev.Outcome = "not ready"
			if res.ReadyErr != nil {
				ev.Detail = res.ReadyErr.Error()
			}
		}
		if err := journal.Append(ctx, ev); err != nil {
			slog.Warn("journal append", "error", err)
			return
		}
		metrics.IncStart(res.Service.Name)
	}
}

func recordShutdown(ctx context.Context, journal *history.Journal, report shutdown.Report) {
	if journal == nil {
		return
	}
	defer func() { _ = journal.Close() }()
	for _, o := range report.Outcomes {
		ev := history.Event{
			Kind:    history.EventStop,
			Service: o.Name,
			Port:    o.Port,
			Outcome: string(o.Final),
		}
		if o.Err != nil {
			ev.Detail = o.Err.Error()
		}
		if err := journal.Append(ctx, ev); err != nil {
			slog.Warn("journal append", "error", err)
			return
		}
		metrics.IncStop(o.Name)
	}
}

func printStartup(w *os.File, report orchestrator.StartupReport, p *status.Palette) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tPORT\tLAUNCH\tREADY")
	for _, res := range report.Results {
		launch := p.Healthy.Sprint("ok")
		if res.LaunchErr != nil {
			launch = p.Unhealthy.Sprint(res.LaunchErr.Error())
		}
		ready := p.Healthy.Sprint("yes")
		if !res.Ready {
			ready = p.Unhealthy.Sprint("no")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", res.Service.Name, res.Service.Port, launch, ready)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "startup took %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func printShutdown(w *os.File, report shutdown.Report, p *status.Palette) {
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(w, "nothing running")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tKIND\tPORT\tRESULT")
	for _, o := range report.Outcomes {
		result := p.Healthy.Sprint("stopped")
		if !o.ForcedAt.IsZero() {
			result = p.Slow.Sprint("stopped (forced)")
		}
		if o.Final == shutdown.StateUnresolved {
			result = p.Unhealthy.Sprint("unresolved")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", o.Name, o.Kind, o.Port, result)
	}
	_ = tw.Flush()
	if report.Purged {
		fmt.Fprintln(w, "persisted volumes removed")
	}
}
