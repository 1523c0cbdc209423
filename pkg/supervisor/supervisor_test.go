package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/process"
)

func requirePOSIXShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

func shellProcess(id, script string, primary bool) ProcessConfig {
	return ProcessConfig{
		ID:      id,
		Primary: primary,
		Execution: process.ExecutionConfig{
			ExecutablePath: "/bin/sh",
			// Trailing "sh" names $0 so an appended config path lands in $1.
			Args: []string{"-c", script, "sh"},
		},
	}
}

func newTestSupervisor(t *testing.T, options Options) *Supervisor {
	t.Helper()
	if options.GracefulTimeout == 0 {
		options.GracefulTimeout = 2 * time.Second
	}
	return New(options, &recordingLogger{})
}

func TestAddProcess_Duplicate(t *testing.T) {
	sup := newTestSupervisor(t, Options{})

	require.NoError(t, sup.AddProcess(shellProcess("web", "exit 0", true)))
	err := sup.AddProcess(shellProcess("web", "exit 0", false))
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestAddProcess_InvalidID(t *testing.T) {
	sup := newTestSupervisor(t, Options{})

	err := sup.AddProcess(shellProcess("bad id", "exit 0", true))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestStart_NoProcesses(t *testing.T) {
	sup := newTestSupervisor(t, Options{})

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestStart_LaunchFailure(t *testing.T) {
	sup := newTestSupervisor(t, Options{})
	require.NoError(t, sup.AddProcess(ProcessConfig{
		ID: "broken",
		Execution: process.ExecutionConfig{
			ExecutablePath: "/nonexistent/definitely-not-a-binary",
		},
	}))

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
}

func TestWaitAny_FirstExitWins(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{})
	require.NoError(t, sup.AddProcess(shellProcess("web", "exit 7", true)))
	require.NoError(t, sup.AddProcess(shellProcess("evaluator", "sleep 30", false)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	event, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, "web", event.ProcessID)
	assert.Equal(t, 7, event.Status.Code)
	assert.False(t, event.Status.Signaled)

	require.NoError(t, sup.Shutdown(ctx))
}

func TestWaitAny_SecondaryFirst(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))
	require.NoError(t, sup.AddProcess(shellProcess("evaluator", "exit 3", false)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	event, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evaluator", event.ProcessID)
	assert.Equal(t, 3, event.Status.Code)

	require.NoError(t, sup.Shutdown(ctx))
}

func TestWaitAny_Cancelled(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))

	require.NoError(t, sup.Start(context.Background()))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, sup.Shutdown(shutdownCtx))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := sup.WaitAny(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))
}

func TestPrimaryReceivesConfigPath(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{ConfigPath: "custom.ini"})
	require.NoError(t, sup.AddProcess(shellProcess("web", `[ "$1" = "custom.ini" ] || exit 9`, true)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	event, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, event.Status.Code, "primary did not receive the resolved config path as $1")
}

func TestSecondaryDoesNotReceiveConfigPath(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{ConfigPath: "custom.ini"})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))
	require.NoError(t, sup.AddProcess(shellProcess("evaluator", `[ $# -eq 0 ] || exit 9`, false)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	event, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evaluator", event.ProcessID)
	assert.Equal(t, 0, event.Status.Code, "secondary unexpectedly received arguments")

	require.NoError(t, sup.Shutdown(ctx))
}

func TestShutdown_TerminatesRunningProcess(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{GracefulTimeout: 500 * time.Millisecond})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))
	require.NoError(t, sup.Shutdown(ctx))

	event, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	assert.Equal(t, "web", event.ProcessID)
	assert.True(t, event.Status.Signaled)
}

func TestCallbacks(t *testing.T) {
	requirePOSIXShell(t)

	var mutex sync.Mutex
	started := make(map[string]int)
	exited := make(map[string]int)

	sup := newTestSupervisor(t, Options{
		Callbacks: Callbacks{
			OnProcessStarted: func(processID string, pid int) {
				mutex.Lock()
				defer mutex.Unlock()
				started[processID] = pid
			},
			OnProcessExited: func(event ExitEvent) {
				mutex.Lock()
				defer mutex.Unlock()
				exited[event.ProcessID] = event.Status.Code
			},
		},
	})
	require.NoError(t, sup.AddProcess(shellProcess("web", "exit 5", true)))
	require.NoError(t, sup.AddProcess(shellProcess("evaluator", "sleep 30", false)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	mutex.Lock()
	assert.Len(t, started, 2)
	assert.Greater(t, started["web"], 0)
	assert.Greater(t, started["evaluator"], 0)
	mutex.Unlock()

	_, err := sup.WaitAny(ctx)
	require.NoError(t, err)
	require.NoError(t, sup.Shutdown(ctx))

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(exited) == 2
	}, 5*time.Second, 50*time.Millisecond)

	mutex.Lock()
	assert.Equal(t, 5, exited["web"])
	mutex.Unlock()
}

func TestPIDFiles(t *testing.T) {
	requirePOSIXShell(t)

	baseDir := t.TempDir()
	sup := newTestSupervisor(t, Options{
		PIDFiles: PIDFilesConfig{Enabled: true, BaseDirectory: baseDir},
	})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	pidFile := filepath.Join(baseDir, "web.pid")
	_, err := os.Stat(pidFile)
	require.NoError(t, err, "PID file should exist while the process runs")

	require.NoError(t, sup.Shutdown(ctx))

	require.Eventually(t, func() bool {
		_, err := os.Stat(pidFile)
		return os.IsNotExist(err)
	}, 5*time.Second, 50*time.Millisecond, "PID file should be removed after exit")
}

func TestProcessStatuses_ConcurrentWithStart(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{GracefulTimeout: 500 * time.Millisecond})
	for i := 0; i < 8; i++ {
		require.NoError(t, sup.AddProcess(shellProcess(fmt.Sprintf("proc-%d", i), "sleep 30", i == 0)))
	}

	// Status readers run while Start is still launching processes, as when
	// the status server accepts requests before all processes are up.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					statuses := sup.ProcessStatuses()
					assert.LessOrEqual(t, len(statuses), 8)
				}
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	close(stop)
	wg.Wait()

	require.NoError(t, sup.Shutdown(ctx))
}

func TestProcessStatuses(t *testing.T) {
	requirePOSIXShell(t)

	sup := newTestSupervisor(t, Options{})
	require.NoError(t, sup.AddProcess(shellProcess("web", "sleep 30", true)))
	require.NoError(t, sup.AddProcess(shellProcess("evaluator", "exit 2", false)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))

	_, err := sup.WaitAny(ctx)
	require.NoError(t, err)

	statuses := sup.ProcessStatuses()
	require.Len(t, statuses, 2)

	byID := make(map[string]ProcessStatus)
	for _, status := range statuses {
		byID[status.ID] = status
	}

	web := byID["web"]
	assert.True(t, web.Primary)
	assert.True(t, web.Running)
	require.NotNil(t, web.Diagnostics)
	assert.Equal(t, web.PID, web.Diagnostics.PID)

	evaluator := byID["evaluator"]
	assert.False(t, evaluator.Running)
	require.NotNil(t, evaluator.ExitCode)
	assert.Equal(t, 2, *evaluator.ExitCode)

	require.NoError(t, sup.Shutdown(ctx))
}
