//go:build unix

package buildexec

import (
	"os/exec"
	"syscall"
)

// setProcessGroup makes cmd the leader of a new process group and
// kills the whole group on cancellation, so Gradle daemons and npm
// children don't outlive the build.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
