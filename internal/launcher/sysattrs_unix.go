//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr places the child in its own process group so termination
// signals reach the whole service tree.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
