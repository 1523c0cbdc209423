package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/journal"
	"github.com/fair-eva/supervisor/pkg/logging"
	"github.com/fair-eva/supervisor/pkg/process"
	"github.com/fair-eva/supervisor/pkg/statusserver"
)

// RunOptions carries the command-line inputs for Run.
type RunOptions struct {
	// ConfigPathArg is the optional positional argument: a candidate
	// application configuration path, subject to existence fallback.
	ConfigPathArg string

	// SupervisorConfigFile optionally overrides the built-in supervisor
	// configuration (YAML). Empty uses DefaultConfig.
	SupervisorConfigFile string

	// RunDuration limits the run to a number of seconds (debug feature).
	RunDuration int
}

// Run starts the managed processes, waits for the first one to exit and
// returns its exit code as the code the supervisor itself should exit with.
// On SIGINT/SIGTERM the processes are terminated and the conventional
// 128+signal code is returned.
func Run(options RunOptions, logger logging.Logger) (int, error) {
	logger.Infof("Supervisor runner starting...")

	logger.Infof("Platform: OS=%s, Arch=%s, CPUs=%d, Go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())

	componentCtx := context.Background()
	operationCtx := componentCtx

	if options.RunDuration > 0 {
		logger.Infof("Using RUN DURATION of %d seconds", options.RunDuration)
		var cancel context.CancelFunc
		operationCtx, cancel = context.WithTimeout(componentCtx, time.Duration(options.RunDuration)*time.Second)
		defer cancel()
	}

	// Load supervisor configuration
	var config *SupervisorConfig
	var err error
	if options.SupervisorConfigFile != "" {
		logger.Infof("Using SUPERVISOR CONFIGURATION FILE: %s", options.SupervisorConfigFile)
		config, err = LoadConfigFromFile(options.SupervisorConfigFile)
		if err != nil {
			return 1, errors.NewIOError("failed to load supervisor configuration", err).
				WithContext("config_file", options.SupervisorConfigFile)
		}
	} else {
		logger.Infof("Using built-in supervisor configuration")
		config = DefaultConfig()
	}

	if err := ValidateConfig(config); err != nil {
		return 1, errors.NewValidationError("supervisor configuration validation failed", err)
	}

	// Resolve the application configuration path (existence fallback)
	configPath, fellBack := ResolveConfigPath(options.ConfigPathArg, logger)
	if fellBack {
		logger.Infof("Using CONFIGURATION FILE: %s (fallback)", configPath)
	} else {
		logger.Infof("Using CONFIGURATION FILE: %s", configPath)
	}

	// Lifecycle event journal
	var eventJournal *journal.Journal
	if config.Journal.Path != "" {
		eventJournal, err = journal.Open(config.Journal.Path)
		if err != nil {
			return 1, errors.NewIOError("failed to open event journal", err).
				WithContext("path", config.Journal.Path)
		}
		defer eventJournal.Close()
		logger.Infof("Event journal enabled: %s", config.Journal.Path)
	}

	metrics := statusserver.NewMetrics()

	callbacks := Callbacks{
		OnProcessStarted: func(processID string, pid int) {
			metrics.ProcessStarted(processID)
			if eventJournal != nil {
				if err := eventJournal.RecordStart(processID, pid); err != nil {
					logger.Warnf("Failed to journal process start, id: %s, error: %v", processID, err)
				}
			}
		},
		OnProcessExited: func(event ExitEvent) {
			metrics.ProcessExited(event.ProcessID, event.Status.Code)
			if eventJournal != nil {
				var journalErr error
				if event.Status.Signaled {
					journalErr = eventJournal.RecordTermination(event.ProcessID, event.PID,
						fmt.Sprintf("signaled, exit code %d", event.Status.Code))
				} else {
					journalErr = eventJournal.RecordExit(event.ProcessID, event.PID, event.Status.Code)
				}
				if journalErr != nil {
					logger.Warnf("Failed to journal process exit, id: %s, error: %v", event.ProcessID, journalErr)
				}
			}
		},
	}

	sup := New(Options{
		ConfigPath:      configPath,
		GracefulTimeout: config.Supervisor.GracefulTimeout.Duration(),
		PIDFiles:        config.PIDFiles,
		Callbacks:       callbacks,
	}, logger)

	for _, processConfig := range config.Processes {
		if err := sup.AddProcess(processConfig); err != nil {
			return 1, errors.NewValidationError(
				fmt.Sprintf("failed to add process: %s", processConfig.ID),
				err,
			).WithContext("process_id", processConfig.ID)
		}
	}

	// Status/metrics endpoint
	if config.Supervisor.StatusPort > 0 {
		server := statusserver.New(config.Supervisor.StatusPort, statusProvider(sup), metrics, logger)
		if err := server.Start(); err != nil {
			return 1, errors.NewIOError("failed to start status server", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warnf("Status server stop failed: %v", err)
			}
		}()
	}

	logger.Infof("Starting %d managed processes...", len(config.Processes))

	if err := sup.Start(componentCtx); err != nil {
		logger.Errorf("Failed to start processes: %v", err)
		shutdown(sup, config, logger)
		return 1, err
	}

	logger.Infof("Enabling signal handling...")

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	logger.Infof("Supervisor is running, waiting for the first process to exit...")

	select {
	case event := <-sup.ExitEvents():
		// First exit wins; the sibling is terminated, never orphaned.
		logger.Infof("Process %s exited first, propagating exit code %d", event.ProcessID, event.Status.Code)
		shutdown(sup, config, logger)
		return event.Status.Code, nil

	case receivedSignal := <-sig:
		logger.Infof("Supervisor received signal: %v, forwarding termination to managed processes", receivedSignal)
		shutdown(sup, config, logger)
		return process.SignalExitCode(receivedSignal), nil

	case <-operationCtx.Done():
		logger.Infof("Run duration elapsed, stopping managed processes")
		shutdown(sup, config, logger)
		return 0, nil
	}
}

func shutdown(sup *Supervisor, config *SupervisorConfig, logger logging.Logger) {
	// Leave headroom beyond the graceful timeout for the forced kill path.
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		config.Supervisor.GracefulTimeout.Duration()+5*time.Second)
	defer cancel()

	if err := sup.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Shutdown finished with errors: %v", err)
	}
}

func statusProvider(sup *Supervisor) statusserver.StatusProvider {
	return func() []statusserver.ProcessStatus {
		statuses := sup.ProcessStatuses()
		result := make([]statusserver.ProcessStatus, 0, len(statuses))
		for _, status := range statuses {
			result = append(result, statusserver.ProcessStatus{
				ID:          status.ID,
				Name:        status.Name,
				Primary:     status.Primary,
				PID:         status.PID,
				Running:     status.Running,
				StartedAt:   status.StartedAt,
				ExitCode:    status.ExitCode,
				Diagnostics: status.Diagnostics,
			})
		}
		return result
	}
}

// ValidateConfigFile validates a supervisor configuration file without
// launching anything. Useful for configuration testing and CI validation.
func ValidateConfigFile(configFile string) error {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}
	return nil
}
