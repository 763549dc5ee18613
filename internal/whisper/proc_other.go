//go:build !unix

package whisper

import (
	"os/exec"
	"time"
)

func terminateProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace
}
