//go:build unix

package whisper

import (
	"os/exec"
	"syscall"
	"time"
)

// terminateProcessGroup runs the engine in its own process group so a
// deadline takes down any helpers it forked, SIGTERM first and SIGKILL after
// grace.
func terminateProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = grace
}
