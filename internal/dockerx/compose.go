package dockerx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// ErrRuntimeUnavailable reports that the container runtime could not be
// invoked at all. Callers render this distinctly from an empty listing.
var ErrRuntimeUnavailable = errors.New("container runtime unavailable")

// ContainerRecord is one running container belonging to the project, as
// reported by the runtime's listing command.
type ContainerRecord struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	State   string `json:"state"`
	Health  string `json:"health,omitempty"`
	Ports   []int  `json:"ports,omitempty"`
}

// Runner abstracts command execution so tests can substitute the runtime.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- fixed binary name, args assembled from the registry
	return exec.CommandContext(ctx, name, args...).Output()
}

func (execRunner) Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	// #nosec G204
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stdout
	return cmd.Run()
}

// Client drives `docker compose` scoped to one project.
type Client struct {
	project string
	bin     string
	runner  Runner
}

// New returns a Client for the given compose project name.
func New(project string) *Client {
	return &Client{project: project, bin: "docker", runner: execRunner{}}
}

// NewWithRunner is used by tests to substitute the command executor.
func NewWithRunner(project, bin string, r Runner) *Client {
	return &Client{project: project, bin: bin, runner: r}
}

func (c *Client) composeArgs(args ...string) []string {
	out := []string{"compose"}
	if c.project != "" {
		out = append(out, "-p", c.project)
	}
	return append(out, args...)
}

// Available reports whether the runtime answers at all.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.runner.Output(ctx, c.bin, "version", "--format", "json")
	return err == nil
}

// List returns running containers for the project. An empty slice with a nil
// error means zero containers; ErrRuntimeUnavailable means the runtime could
// not be queried.
func (c *Client) List(ctx context.Context) ([]ContainerRecord, error) {
	out, err := c.runner.Output(ctx, c.bin, c.composeArgs("ps", "--format", "json")...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return parsePS(out)
}

// composePSEntry mirrors the runtime's JSON listing schema.
type composePSEntry struct {
	Name       string `json:"Name"`
	Service    string `json:"Service"`
	State      string `json:"State"`
	Health     string `json:"Health"`
	Publishers []struct {
		TargetPort    int `json:"TargetPort"`
		PublishedPort int `json:"PublishedPort"`
	} `json:"Publishers"`
}

// parsePS handles both output shapes the runtime emits: one JSON object per
// line, or a single JSON array.
func parsePS(out []byte) ([]ContainerRecord, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return []ContainerRecord{}, nil
	}
	var entries []composePSEntry
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("parse container listing: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var e composePSEntry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return nil, fmt.Errorf("parse container listing line: %w", err)
			}
			entries = append(entries, e)
		}
	}
	records := make([]ContainerRecord, 0, len(entries))
	for _, e := range entries {
		rec := ContainerRecord{Name: e.Name, Service: e.Service, State: e.State, Health: e.Health}
		for _, p := range e.Publishers {
			if p.PublishedPort > 0 {
				rec.Ports = append(rec.Ports, p.PublishedPort)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Up launches the given compose services detached. With no services it brings
// the whole project up. build forces an image rebuild first.
func (c *Client) Up(ctx context.Context, build bool, services ...string) error {
	args := []string{"up", "-d"}
	if build {
		args = append(args, "--build")
	}
	args = append(args, services...)
	if err := c.runner.Run(ctx, io.Discard, c.bin, c.composeArgs(args...)...); err != nil {
		return fmt.Errorf("compose up: %w", err)
	}
	return nil
}

// Stop requests graceful termination of the named containers.
func (c *Client) Stop(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	args := append([]string{"stop"}, names...)
	if err := c.runner.Run(ctx, io.Discard, c.bin, args...); err != nil {
		return fmt.Errorf("stop containers: %w", err)
	}
	return nil
}

// Remove force-removes the named containers.
func (c *Client) Remove(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	args := append([]string{"rm", "-f"}, names...)
	if err := c.runner.Run(ctx, io.Discard, c.bin, args...); err != nil {
		return fmt.Errorf("remove containers: %w", err)
	}
	return nil
}

// Down stops the project; purgeVolumes additionally removes persisted volumes.
// Destructive when purgeVolumes is set, so callers gate it behind confirmation.
func (c *Client) Down(ctx context.Context, purgeVolumes bool) error {
	args := []string{"down"}
	if purgeVolumes {
		args = append(args, "-v")
	}
	if err := c.runner.Run(ctx, io.Discard, c.bin, c.composeArgs(args...)...); err != nil {
		return fmt.Errorf("compose down: %w", err)
	}
	return nil
}

// Logs streams combined project logs to stdout until ctx is cancelled.
func (c *Client) Logs(ctx context.Context, stdout io.Writer, follow bool) error {
	args := []string{"logs"}
	if follow {
		args = append(args, "-f")
	}
	if err := c.runner.Run(ctx, stdout, c.bin, c.composeArgs(args...)...); err != nil {
		// Cancellation while tailing is the normal way out.
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("compose logs: %w", err)
	}
	return nil
}
