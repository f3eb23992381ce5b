//go:build windows

package executor

import "os/exec"

// net.exe and appcmd.exe do not fork helpers, so no job object is needed.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
