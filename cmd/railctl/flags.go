package main

import "time"

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	NoColor    bool
	Debug      bool
}

// StartDockerFlags holds flags for the start-docker command.
type StartDockerFlags struct {
	Build   bool
	Clean   bool
	Dev     bool
	Logs    bool
	Monitor bool
}

// StartDevFlags holds flags for the start-dev command. The *Only flags are
// mutually exclusive and restrict orchestration to one tier.
type StartDevFlags struct {
	SkipDB        bool
	DBOnly        bool
	BackendOnly   bool
	FrontendOnly  bool
	OptimizerOnly bool
	Status        bool
	LogsDir       string
}

// StatusFlags holds flags for the check-status command.
type StatusFlags struct {
	Detailed   bool
	Continuous bool
	Docker     bool
	Logs       bool
	JSON       bool
	Interval   time.Duration
	Serve      string
	History    int
}

// StopFlags holds flags for the stop command.
type StopFlags struct {
	Docker    bool
	Processes bool
	Clean     bool
	Force     bool
	All       bool
}
