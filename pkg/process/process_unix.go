//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/fair-eva/supervisor/pkg/errors"
)

func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // process becomes its own group leader
	}
}

// signalProcess delivers sig to the whole process group of pid.
func signalProcess(pid int, sig os.Signal) error {
	sysSig, ok := sig.(syscall.Signal)
	if !ok {
		return errors.NewValidationError("unsupported signal type", nil).WithContext("signal", sig.String())
	}
	return syscall.Kill(-pid, sysSig)
}

func terminateProcess(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

func killProcess(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// signalDeathCode maps a signal death to the 128+N shell convention.
func signalDeathCode(exitErr *exec.ExitError) (int, bool) {
	waitStatus, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !waitStatus.Signaled() {
		return 0, false
	}
	return 128 + int(waitStatus.Signal()), true
}

// SignalExitCode returns the exit code the supervisor itself propagates when
// it is stopped by sig before any subprocess has exited.
func SignalExitCode(sig os.Signal) int {
	if sysSig, ok := sig.(syscall.Signal); ok {
		return 128 + int(sysSig)
	}
	return 1
}
