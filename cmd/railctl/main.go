package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) || ee.err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// buildRoot creates the root command and wires all subcommands.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	startDockerFlags := &StartDockerFlags{}
	startDevFlags := &StartDevFlags{}
	statusFlags := &StatusFlags{}
	stopFlags := &StopFlags{}

	railctlCommand := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartDockerCommand(railctlCommand, startDockerFlags),
		createStartDevCommand(railctlCommand, startDevFlags),
		createCheckStatusCommand(railctlCommand, statusFlags),
		createStopCommand(railctlCommand, stopFlags),
	)
	return root
}

// createRootCommand creates the root command with persistent flags.
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "railctl",
		Short: "Workstation lifecycle manager for the railboard stack",
		Long: `Railctl starts, inspects, and stops the railboard development stack:
the data tier (postgres, redis), the optimizer, the backend API, the web
frontend, and optionally the monitoring services.

Examples:
  railctl start-docker --build          # full stack in containers
  railctl start-dev --skipDB            # app tier on the host
  railctl check-status --detailed
  railctl stop --all --force`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")

	return root
}

// createStartDockerCommand creates the start-docker subcommand.
func createStartDockerCommand(railctlCommand command, flags *StartDockerFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-docker",
		Short: "Start the full stack as containers",
		Long: `Start every registered service through the compose project, one
dependency group at a time, waiting for each group to accept connections
before launching the next.

Examples:
  railctl start-docker
  railctl start-docker --build --monitor
  railctl start-docker --clean            # wipe persisted volumes first`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return railctlCommand.StartDocker(cmd.Context(), *flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Build, "build", false, "force an image rebuild before launch")
	cmd.Flags().BoolVar(&flags.Clean, "clean", false, "wipe persisted volumes before starting")
	cmd.Flags().BoolVar(&flags.Dev, "dev", false, "start only the container-backed infrastructure tier")
	cmd.Flags().BoolVar(&flags.Logs, "logs", false, "tail combined container logs after startup")
	cmd.Flags().BoolVar(&flags.Monitor, "monitor", false, "include the monitoring services for this run")

	return cmd
}

// createStartDevCommand creates the start-dev subcommand.
func createStartDevCommand(railctlCommand command, flags *StartDevFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-dev",
		Short: "Start the stack for host development",
		Long: `Start the infrastructure tier in containers and the application
tier as host processes, with output captured to rotating log files.

The *Only flags restrict the run to a single tier and are mutually
exclusive. --skipDB assumes the data tier is already running.

Examples:
  railctl start-dev
  railctl start-dev --dbOnly
  railctl start-dev --skipDB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return railctlCommand.StartDev(cmd.Context(), *flags)
		},
	}

	cmd.Flags().BoolVar(&flags.SkipDB, "skipDB", false, "do not start the data tier")
	cmd.Flags().BoolVar(&flags.DBOnly, "dbOnly", false, "start only the data tier")
	cmd.Flags().BoolVar(&flags.BackendOnly, "backendOnly", false, "start only the backend")
	cmd.Flags().BoolVar(&flags.FrontendOnly, "frontendOnly", false, "start only the frontend")
	cmd.Flags().BoolVar(&flags.OptimizerOnly, "optimizerOnly", false, "start only the optimizer")
	cmd.Flags().BoolVar(&flags.Status, "status", false, "report status instead of starting anything")
	cmd.Flags().StringVar(&flags.LogsDir, "logs-dir", "", "directory for captured service output (overrides the config file)")

	return cmd
}

// createCheckStatusCommand creates the check-status subcommand.
func createCheckStatusCommand(railctlCommand command, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-status",
		Short: "Report the health of every registered service",
		Long: `Probe every registered service concurrently and print one merged
status line per service: stopped, running, running+healthy, or
running+unhealthy.

Examples:
  railctl check-status
  railctl check-status --detailed --docker
  railctl check-status --continuous --interval 10s
  railctl check-status --serve :7070      # expose status over HTTP`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return railctlCommand.CheckStatus(cmd.Context(), *flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Detailed, "detailed", false, "add process, container, and protocol-level detail")
	cmd.Flags().BoolVar(&flags.Continuous, "continuous", false, "poll repeatedly until interrupted")
	cmd.Flags().BoolVar(&flags.Docker, "docker", false, "cross-reference the container runtime's listing")
	cmd.Flags().BoolVar(&flags.Logs, "logs", false, "tail combined container logs after the pass")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().DurationVar(&flags.Interval, "interval", 5*time.Second, "polling interval for --continuous")
	cmd.Flags().StringVar(&flags.Serve, "serve", "", "serve status and metrics over HTTP on this address")
	cmd.Flags().IntVar(&flags.History, "history", 0, "print the last N lifecycle events instead of probing")

	return cmd
}

// createStopCommand creates the stop subcommand.
func createStopCommand(railctlCommand command, flags *StopFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop running services",
		Long: `Stop running instances of registered services: graceful
termination first, escalating to forced termination for anything still
present after the grace period.

Without a scope flag the command asks which scope to target.

Examples:
  railctl stop --all --force
  railctl stop --processes
  railctl stop --docker --clean           # also wipe persisted volumes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return railctlCommand.Stop(cmd.Context(), *flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Docker, "docker", false, "stop container-backed services")
	cmd.Flags().BoolVar(&flags.Processes, "processes", false, "stop host processes")
	cmd.Flags().BoolVar(&flags.All, "all", false, "stop both containers and host processes")
	cmd.Flags().BoolVar(&flags.Clean, "clean", false, "wipe persisted volumes after everything stopped")
	cmd.Flags().BoolVar(&flags.Force, "force", false, "skip the confirmation prompt")

	return cmd
}
