package process

import (
	"context"
	"runtime"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fair-eva/supervisor/pkg/errors"
)

// testLogger is a no-op logging.Logger implementation
type testLogger struct{}

func (l *testLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *testLogger) Debugf(format string, args ...interface{})               {}
func (l *testLogger) Infof(format string, args ...interface{})                {}
func (l *testLogger) Warnf(format string, args ...interface{})                {}
func (l *testLogger) Errorf(format string, args ...interface{})               {}

func requirePOSIXShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test requires a POSIX shell")
	}
}

func shellConfig(script string) ExecutionConfig {
	return ExecutionConfig{
		ExecutablePath: "/bin/sh",
		Args:           []string{"-c", script},
	}
}

func execute(t *testing.T, config ExecutionConfig) *Handle {
	t.Helper()
	executeCmd := NewStdExecuteCmd(config, "test-process", &testLogger{})
	handle, err := executeCmd(context.Background())
	require.NoError(t, err)
	return handle
}

func waitForExit(t *testing.T, handle *Handle) ExitStatus {
	t.Helper()
	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit in time")
	}
	status, exited := handle.ExitStatus()
	require.True(t, exited)
	return status
}

func TestNewStdExecuteCmd_EmptyExecutablePath(t *testing.T) {
	executeCmd := NewStdExecuteCmd(ExecutionConfig{}, "test-process", &testLogger{})
	_, err := executeCmd(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestExecute_MissingExecutable(t *testing.T) {
	executeCmd := NewStdExecuteCmd(ExecutionConfig{
		ExecutablePath: "/nonexistent/definitely-not-a-binary",
	}, "test-process", &testLogger{})
	_, err := executeCmd(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
}

func TestExecute_Success(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("exit 0"))
	status := waitForExit(t, handle)

	assert.Equal(t, 0, status.Code)
	assert.False(t, status.Signaled)
	assert.NoError(t, status.Err)
	assert.False(t, handle.Running())
}

func TestExecute_NonZeroExit(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("exit 4"))
	status := waitForExit(t, handle)

	assert.Equal(t, 4, status.Code)
	assert.False(t, status.Signaled)
	assert.Error(t, status.Err)
}

func TestExecute_Environment(t *testing.T) {
	requirePOSIXShell(t)

	config := shellConfig(`[ "$SUPERVISOR_TEST_VAR" = "hello" ] || exit 9`)
	config.Environment = []string{"SUPERVISOR_TEST_VAR=hello"}

	handle := execute(t, config)
	status := waitForExit(t, handle)
	assert.Equal(t, 0, status.Code)
}

func TestExecute_WorkingDirectory(t *testing.T) {
	requirePOSIXShell(t)

	dir := t.TempDir()
	config := shellConfig(`[ "$(pwd)" = "$SUPERVISOR_TEST_DIR" ] || exit 9`)
	config.WorkingDirectory = dir
	config.Environment = []string{"SUPERVISOR_TEST_DIR=" + dir}

	handle := execute(t, config)
	status := waitForExit(t, handle)
	assert.Equal(t, 0, status.Code)
}

func TestHandle_ExitStatusBeforeExit(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("sleep 30"))
	_, exited := handle.ExitStatus()
	assert.False(t, exited)
	assert.True(t, handle.Running())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := handle.Terminate(ctx, 500*time.Millisecond)
	require.NoError(t, err)
}

func TestTerminate_Graceful(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("sleep 30"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := handle.Terminate(ctx, 5*time.Second)
	require.NoError(t, err)

	assert.True(t, status.Signaled)
	assert.Equal(t, 128+int(syscall.SIGTERM), status.Code)
	assert.False(t, handle.Running())
}

func TestTerminate_AlreadyExited(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("exit 6"))
	waitForExit(t, handle)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := handle.Terminate(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 6, status.Code)
}

func TestSignal_NotRunning(t *testing.T) {
	requirePOSIXShell(t)

	handle := execute(t, shellConfig("exit 0"))
	waitForExit(t, handle)

	err := handle.Signal(syscall.SIGTERM)
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
}

func TestSignalExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		assert.Equal(t, 1, SignalExitCode(syscall.SIGTERM))
		return
	}
	assert.Equal(t, 143, SignalExitCode(syscall.SIGTERM))
	assert.Equal(t, 130, SignalExitCode(syscall.SIGINT))
}
