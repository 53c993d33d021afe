//go:build !unix

package buildexec

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}
