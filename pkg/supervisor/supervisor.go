package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/logging"
	"github.com/fair-eva/supervisor/pkg/monitoring"
	"github.com/fair-eva/supervisor/pkg/process"
	"github.com/fair-eva/supervisor/pkg/processfile"
)

// ExitEvent reports that one managed process has exited.
type ExitEvent struct {
	ProcessID string
	PID       int
	Status    process.ExitStatus
}

// Callbacks are invoked on process lifecycle transitions. Both are optional.
type Callbacks struct {
	OnProcessStarted func(processID string, pid int)
	OnProcessExited  func(event ExitEvent)
}

// Options configures a Supervisor instance.
type Options struct {
	// ConfigPath is the resolved application configuration path appended to
	// the primary process's arguments. Empty means no path is appended.
	ConfigPath string

	// GracefulTimeout bounds how long Shutdown waits between the graceful
	// termination signal and the forced kill.
	GracefulTimeout time.Duration

	// PIDFiles enables PID file bookkeeping for managed processes.
	PIDFiles PIDFilesConfig

	Callbacks Callbacks
}

type processEntry struct {
	config    ProcessConfig
	handle    *process.Handle
	startedAt time.Time
}

// Supervisor owns the managed subprocesses: it launches them in declared
// order, reports the first exit and terminates the rest on shutdown.
type Supervisor struct {
	options    Options
	pidManager *processfile.ProcessFileManager // nil when PID files are disabled
	logger     logging.Logger

	mutex     sync.Mutex
	processes []*processEntry
	exitCh    chan ExitEvent
	started   bool
}

func New(options Options, logger logging.Logger) *Supervisor {
	if options.GracefulTimeout <= 0 {
		options.GracefulTimeout = 10 * time.Second
	}

	var pidManager *processfile.ProcessFileManager
	if options.PIDFiles.Enabled {
		pidManager = processfile.NewProcessFileManager(processfile.ProcessFileConfig{
			BaseDirectory: options.PIDFiles.BaseDirectory,
		}, logger)
	}

	return &Supervisor{
		options:    options,
		pidManager: pidManager,
		logger:     logger,
	}
}

// AddProcess registers a managed process. Processes are launched by Start in
// registration order.
func (s *Supervisor) AddProcess(config ProcessConfig) error {
	if err := ValidateProcessID(config.ID); err != nil {
		return errors.NewValidationError("invalid process ID", err).WithContext("process_id", config.ID)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return errors.NewValidationError("cannot add processes after start", nil).WithContext("process_id", config.ID)
	}
	for _, entry := range s.processes {
		if entry.config.ID == config.ID {
			return errors.NewConflictError("process already exists", nil).WithContext("process_id", config.ID)
		}
	}

	s.processes = append(s.processes, &processEntry{config: config})
	s.logger.Infof("Process added, id: %s, primary: %t, executable: %s",
		config.ID, config.Primary, config.Execution.ExecutablePath)
	return nil
}

// Start launches all registered processes in order. The primary process
// receives the resolved configuration path as its trailing argument. On a
// launch failure the error is returned immediately; already-launched
// processes keep running and are the caller's responsibility to Shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.started {
		s.mutex.Unlock()
		return errors.NewValidationError("supervisor already started", nil)
	}
	if len(s.processes) == 0 {
		s.mutex.Unlock()
		return errors.NewValidationError("no processes registered", nil)
	}
	s.started = true
	s.exitCh = make(chan ExitEvent, len(s.processes))
	processes := s.processes
	s.mutex.Unlock()

	for _, entry := range processes {
		execution := entry.config.Execution
		if entry.config.Primary && s.options.ConfigPath != "" {
			args := make([]string, 0, len(execution.Args)+1)
			args = append(args, execution.Args...)
			execution.Args = append(args, s.options.ConfigPath)
		}

		executeCmd := process.NewStdExecuteCmd(execution, entry.config.ID, s.logger)
		handle, err := executeCmd(ctx)
		if err != nil {
			return errors.NewProcessError("failed to start process", err).WithContext("process_id", entry.config.ID)
		}

		s.mutex.Lock()
		entry.handle = handle
		entry.startedAt = time.Now()
		s.mutex.Unlock()

		if s.pidManager != nil {
			if err := s.pidManager.WritePIDFile(entry.config.ID, handle.Pid()); err != nil {
				// The process is already running; PID file failures are not fatal.
				s.logger.Errorf("Failed to write PID file, id: %s, error: %v", entry.config.ID, err)
			}
		}
		if s.options.Callbacks.OnProcessStarted != nil {
			s.options.Callbacks.OnProcessStarted(entry.config.ID, handle.Pid())
		}

		go s.watch(entry)
	}

	return nil
}

// watch forwards a process's exit to the exit channel exactly once.
func (s *Supervisor) watch(entry *processEntry) {
	<-entry.handle.Done()
	status, _ := entry.handle.ExitStatus()

	if s.pidManager != nil {
		if err := s.pidManager.RemovePIDFile(entry.config.ID); err != nil {
			s.logger.Warnf("Failed to remove PID file, id: %s, error: %v", entry.config.ID, err)
		}
	}

	event := ExitEvent{
		ProcessID: entry.config.ID,
		PID:       entry.handle.Pid(),
		Status:    status,
	}
	s.logger.Infof("Process exited, id: %s, PID: %d, exit code: %d, signaled: %t",
		event.ProcessID, event.PID, status.Code, status.Signaled)

	if s.options.Callbacks.OnProcessExited != nil {
		s.options.Callbacks.OnProcessExited(event)
	}

	s.exitCh <- event
}

// ExitEvents returns the channel on which process exits are delivered, in
// exit order. Valid after Start.
func (s *Supervisor) ExitEvents() <-chan ExitEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.exitCh
}

// WaitAny blocks until the first managed process exits or ctx is done.
// This is a wait-any, not a wait-all: the sibling may still be running when
// WaitAny returns.
func (s *Supervisor) WaitAny(ctx context.Context) (ExitEvent, error) {
	select {
	case event := <-s.ExitEvents():
		return event, nil
	case <-ctx.Done():
		return ExitEvent{}, errors.NewCancelledError("wait for process exit cancelled", ctx.Err())
	}
}

// Shutdown terminates all still-running processes: graceful termination
// first, forced kill after the graceful timeout. Errors are collected so
// every process gets its termination attempt.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.logger.Infof("Shutting down remaining processes...")

	collection := errors.NewErrorCollection()
	for _, entry := range s.entries() {
		if entry.handle == nil || !entry.handle.Running() {
			continue
		}
		if _, err := entry.handle.Terminate(ctx, s.options.GracefulTimeout); err != nil {
			collection.Add(errors.NewProcessError("failed to terminate process", err).
				WithContext("process_id", entry.config.ID))
		}
	}

	if collection.HasErrors() {
		s.logger.Errorf("Some processes failed to stop: %v", collection.Error())
	} else {
		s.logger.Infof("All processes stopped.")
	}
	return collection.ToError()
}

// ProcessStatus is the current view of one managed process.
type ProcessStatus struct {
	ID          string
	Name        string
	Primary     bool
	PID         int
	Running     bool
	StartedAt   time.Time
	ExitCode    *int
	Diagnostics *monitoring.ProcessDiagnostics
}

// ProcessStatuses reports the state of all managed processes, with resource
// diagnostics sampled for the running ones.
func (s *Supervisor) ProcessStatuses() []ProcessStatus {
	entries := s.entries()

	statuses := make([]ProcessStatus, 0, len(entries))
	for _, entry := range entries {
		status := ProcessStatus{
			ID:        entry.config.ID,
			Name:      entry.config.Metadata.Name,
			Primary:   entry.config.Primary,
			StartedAt: entry.startedAt,
		}
		if entry.handle != nil {
			status.PID = entry.handle.Pid()
			if exitStatus, exited := entry.handle.ExitStatus(); exited {
				code := exitStatus.Code
				status.ExitCode = &code
			} else {
				status.Running = true
				diagnostics := monitoring.Sample(entry.handle.Pid())
				status.Diagnostics = &diagnostics
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// entries returns value snapshots taken under the mutex so callers never
// read handle/startedAt fields that Start is still writing.
func (s *Supervisor) entries() []processEntry {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snapshot := make([]processEntry, len(s.processes))
	for i, entry := range s.processes {
		snapshot[i] = *entry
	}
	return snapshot
}
