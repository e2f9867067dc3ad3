package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/railboard/railctl/internal/dockerx"
	"github.com/railboard/railctl/internal/hostproc"
)

// Process exit codes. The distinction between "completed with failures",
// "aborted by the operator", and "runtime unavailable" is part of the
// scripting contract.
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitAborted = 3
	exitRuntime = 4
)

// exitError carries an explicit exit code out of a command handler.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func usageErr(format string, args ...any) error {
	return exitWith(exitUsage, fmt.Errorf(format, args...))
}

// exitCode maps a handler error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, dockerx.ErrRuntimeUnavailable) {
		return exitRuntime
	}
	var unavailable hostproc.ErrUnavailable
	if errors.As(err, &unavailable) {
		return exitRuntime
	}
	return exitFailed
}

// askYesNo reads a y/N answer from r. Anything but an explicit yes is no.
func askYesNo(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// askScope interactively picks a shutdown scope. Returns "" when the
// operator aborts.
func askScope(r io.Reader, w io.Writer) string {
	fmt.Fprint(w, "stop what? [c]ontainers, [p]rocesses, [b]oth, [a]bort: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		return ""
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "containers":
		return "containers"
	case "p", "processes":
		return "processes"
	case "b", "both":
		return "both"
	}
	return ""
}
