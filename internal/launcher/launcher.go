package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/railboard/railctl/internal/logger"
	"github.com/railboard/railctl/internal/registry"
)

// Launcher invokes a service's opaque start command. Implementations never
// wait for the command to exit; long-running servers do not exit.
type Launcher interface {
	Launch(ctx context.Context, svc registry.Service) error
}

// Native launches services as OS processes with their output captured to
// rotating log files.
type Native struct {
	// BaseDir resolves relative service workdirs; empty means the current
	// working directory.
	BaseDir string
	// Log configures output capture for every launched service.
	Log logger.Config
	// Env is appended to the inherited environment.
	Env []string
}

var _ Launcher = (*Native)(nil)

// Launch starts svc's command in its own process group and reaps it in the
// background. The returned error covers only the launch itself.
func (n *Native) Launch(ctx context.Context, svc registry.Service) error {
	cmd := buildCommand(svc.Command)
	if svc.WorkDir != "" {
		dir := svc.WorkDir
		if !filepath.IsAbs(dir) && n.BaseDir != "" {
			dir = filepath.Join(n.BaseDir, dir)
		}
		cmd.Dir = dir
	}
	if len(n.Env) > 0 {
		cmd.Env = append(os.Environ(), n.Env...)
	}
	setSysProcAttr(cmd)

	var outW, errW io.WriteCloser
	if n.Log.Dir != "" || n.Log.StdoutPath != "" || n.Log.StderrPath != "" {
		if n.Log.Dir != "" {
			_ = os.MkdirAll(n.Log.Dir, 0o750)
		}
		outW, errW, _ = n.Log.Writers(svc.Name)
	}
	if outW != nil {
		cmd.Stdout = outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if errW != nil {
		cmd.Stderr = errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}

	if err := cmd.Start(); err != nil {
		closeAll(outW, errW)
		return fmt.Errorf("launch %s: %w", svc.Name, err)
	}
	slog.Debug("service launched", "service", svc.Name, "pid", cmd.Process.Pid)

	// Reap in the background so a quickly-exiting command does not linger as
	// a zombie; writers close once the process is gone.
	go func() {
		_ = cmd.Wait()
		closeAll(outW, errW)
	}()
	return nil
}

func closeAll(ws ...io.WriteCloser) {
	for _, w := range ws {
		if w != nil {
			_ = w.Close()
		}
	}
}
