package process

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/logging"
)

// ExecutionConfig describes how to launch one OS subprocess
type ExecutionConfig struct {
	ExecutablePath   string   `yaml:"executable_path"`
	Args             []string `yaml:"args,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	WaitDelay        Duration `yaml:"wait_delay,omitempty"`
}

// ExitStatus captures how a subprocess terminated. For signal deaths on Unix
// the code follows the shell convention of 128 plus the signal number.
type ExitStatus struct {
	Code     int
	Signaled bool
	Err      error
}

// ExecuteCmd launches a subprocess and returns a handle to it.
type ExecuteCmd func(ctx context.Context) (*Handle, error)

// Handle represents one launched subprocess owned by the supervisor.
// Done() is closed after the process has been reaped; ExitStatus is valid
// from that point on.
type Handle struct {
	id     string
	cmd    *exec.Cmd
	logger logging.Logger

	done chan struct{}

	mutex  sync.Mutex
	exited bool
	status ExitStatus
}

// NewStdExecuteCmd returns an ExecuteCmd that starts the configured
// executable in its own process group, with stdout/stderr forwarded to the
// supervisor's own streams. Cancelling ctx sends a graceful termination
// signal; WaitDelay bounds how long the runtime waits before killing.
func NewStdExecuteCmd(config ExecutionConfig, id string, logger logging.Logger) ExecuteCmd {
	return func(ctx context.Context) (*Handle, error) {
		if config.ExecutablePath == "" {
			return nil, errors.NewValidationError("executable path cannot be empty", nil).WithContext("process_id", id)
		}

		cmd := exec.CommandContext(ctx, config.ExecutablePath, config.Args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if config.WorkingDirectory != "" {
			cmd.Dir = config.WorkingDirectory
		}
		if len(config.Environment) > 0 {
			cmd.Env = append(os.Environ(), config.Environment...)
		}

		// Own process group so the subprocess survives supervisor-internal
		// signals and can be terminated as a group.
		setSysProcAttr(cmd)

		waitDelay := config.WaitDelay.Duration()
		if waitDelay <= 0 {
			waitDelay = 10 * time.Second
		}
		cmd.WaitDelay = waitDelay
		cmd.Cancel = func() error {
			return terminateProcess(cmd.Process.Pid)
		}

		if err := cmd.Start(); err != nil {
			return nil, errors.NewProcessError("failed to start process", err).
				WithContext("process_id", id).
				WithContext("executable_path", config.ExecutablePath)
		}

		handle := &Handle{
			id:     id,
			cmd:    cmd,
			logger: logger,
			done:   make(chan struct{}),
		}
		go handle.reap()

		logger.Infof("Process started, id: %s, PID: %d", id, cmd.Process.Pid)
		return handle, nil
	}
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	status := exitStatusFromError(err)

	h.mutex.Lock()
	h.exited = true
	h.status = status
	h.mutex.Unlock()

	close(h.done)
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitStatus returns the recorded exit status. The boolean is false while
// the process is still running.
func (h *Handle) ExitStatus() (ExitStatus, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.status, h.exited
}

func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Signal delivers a signal to the subprocess's process group.
func (h *Handle) Signal(sig os.Signal) error {
	if !h.Running() {
		return errors.NewProcessError("process is not running", nil).WithContext("process_id", h.id)
	}
	if err := signalProcess(h.Pid(), sig); err != nil {
		return errors.NewProcessError("failed to signal process", err).
			WithContext("process_id", h.id)
	}
	return nil
}

// Terminate stops the subprocess: graceful termination first, then a forced
// kill once gracefulTimeout elapses. It returns the final exit status.
func (h *Handle) Terminate(ctx context.Context, gracefulTimeout time.Duration) (ExitStatus, error) {
	if status, exited := h.ExitStatus(); exited {
		return status, nil
	}

	h.logger.Infof("Terminating process, id: %s, PID: %d, graceful timeout: %s", h.id, h.Pid(), gracefulTimeout)

	if err := terminateProcess(h.Pid()); err != nil {
		h.logger.Warnf("Failed to send termination signal, id: %s, error: %v", h.id, err)
	}

	select {
	case <-h.done:
		status, _ := h.ExitStatus()
		return status, nil
	case <-time.After(gracefulTimeout):
		h.logger.Warnf("Graceful timeout elapsed, killing process, id: %s, PID: %d", h.id, h.Pid())
	case <-ctx.Done():
		h.logger.Warnf("Termination context done, killing process, id: %s, PID: %d", h.id, h.Pid())
	}

	if err := killProcess(h.Pid()); err != nil {
		h.logger.Warnf("Failed to kill process, id: %s, error: %v", h.id, err)
	}

	select {
	case <-h.done:
		status, _ := h.ExitStatus()
		return status, nil
	case <-ctx.Done():
		return ExitStatus{}, errors.NewCancelledError("process termination cancelled", ctx.Err()).
			WithContext("process_id", h.id)
	}
}

func exitStatusFromError(err error) ExitStatus {
	if err == nil {
		return ExitStatus{Code: 0}
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		if code, signaled := signalDeathCode(exitErr); signaled {
			return ExitStatus{Code: code, Signaled: true, Err: err}
		}
		return ExitStatus{Code: exitErr.ExitCode(), Err: err}
	}
	// Wait failed without process state (e.g. I/O error); treat as failure.
	return ExitStatus{Code: 1, Err: err}
}
