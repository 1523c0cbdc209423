//go:build windows

package process

import (
	"os"
	"os/exec"
)

func setSysProcAttr(cmd *exec.Cmd) {
	// No process groups to set up; termination is per-process on Windows.
}

func signalProcess(pid int, sig os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if sig == os.Kill {
		return proc.Kill()
	}
	return proc.Signal(sig)
}

func terminateProcess(pid int) error {
	// Graceful termination signals are not implemented on Windows.
	return killProcess(pid)
}

func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

func signalDeathCode(exitErr *exec.ExitError) (int, bool) {
	return 0, false
}

// SignalExitCode returns the exit code the supervisor itself propagates when
// it is stopped by sig before any subprocess has exited.
func SignalExitCode(sig os.Signal) int {
	return 1
}
