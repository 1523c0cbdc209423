package supervisor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/journal"
	"github.com/fair-eva/supervisor/pkg/process"
)

// SupervisorConfig represents the top-level configuration file structure
type SupervisorConfig struct {
	Supervisor SupervisorConfigOptions `yaml:"supervisor"`
	Processes  []ProcessConfig         `yaml:"processes"`
	Journal    journal.Config          `yaml:"journal,omitempty"`
	PIDFiles   PIDFilesConfig          `yaml:"pid_files,omitempty"`
}

// SupervisorConfigOptions represents supervisor-level configuration
type SupervisorConfigOptions struct {
	LogLevel        string           `yaml:"log_level,omitempty"`
	GracefulTimeout process.Duration `yaml:"graceful_timeout,omitempty"`
	StatusPort      int              `yaml:"status_port,omitempty"` // 0 disables the status server
}

// PIDFilesConfig enables PID files for managed processes
type PIDFilesConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	BaseDirectory string `yaml:"base_directory,omitempty"`
}

// ProcessConfig represents a single managed process configuration
type ProcessConfig struct {
	ID        string                  `yaml:"id"`
	Primary   bool                    `yaml:"primary,omitempty"` // receives the resolved configuration path
	Metadata  ProcessMetadata         `yaml:"metadata,omitempty"`
	Execution process.ExecutionConfig `yaml:"execution"`
}

type ProcessMetadata struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// DefaultConfig returns the built-in configuration used when no supervisor
// configuration file is supplied: the original web API plus background
// evaluator pair.
func DefaultConfig() *SupervisorConfig {
	config := &SupervisorConfig{
		Processes: []ProcessConfig{
			{
				ID:      "web",
				Primary: true,
				Metadata: ProcessMetadata{
					Name: "FAIR assessment web API",
				},
				Execution: process.ExecutionConfig{
					ExecutablePath: "python3",
					Args:           []string{"web.py"},
				},
			},
			{
				ID: "evaluator",
				Metadata: ProcessMetadata{
					Name: "Background evaluator",
				},
				Execution: process.ExecutionConfig{
					ExecutablePath: "python3",
					Args:           []string{"fair.py"},
				},
			},
		},
	}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads supervisor configuration from a YAML file
func LoadConfigFromFile(filename string) (*SupervisorConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config SupervisorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *SupervisorConfig) {
	if config.Supervisor.LogLevel == "" {
		config.Supervisor.LogLevel = "info"
	}
	if config.Supervisor.GracefulTimeout <= 0 {
		config.Supervisor.GracefulTimeout = process.Duration(10 * time.Second)
	}
	// PIDFiles.BaseDirectory is defaulted by processfile.NewProcessFileManager.

	for i := range config.Processes {
		processConfig := &config.Processes[i]
		if processConfig.Execution.WaitDelay <= 0 {
			processConfig.Execution.WaitDelay = process.Duration(10 * time.Second)
		}
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *SupervisorConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateSupervisorOptions(&config.Supervisor); err != nil {
		return errors.NewValidationError("invalid supervisor configuration", err)
	}

	if err := validateProcessesConfig(config.Processes); err != nil {
		return errors.NewValidationError("invalid managed processes configuration", err)
	}

	return nil
}

func validateSupervisorOptions(options *SupervisorConfigOptions) error {
	if options.StatusPort < 0 || options.StatusPort > 65535 {
		return errors.NewValidationError(
			fmt.Sprintf("invalid status port: %d", options.StatusPort),
			nil,
		).WithContext("valid_range", "0-65535")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if options.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if options.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			return errors.NewValidationError(
				fmt.Sprintf("invalid log level: %s", options.LogLevel),
				nil,
			).WithContext("valid_levels", "debug, info, warn, error")
		}
	}

	return nil
}

func validateProcessesConfig(processes []ProcessConfig) error {
	if len(processes) == 0 {
		return errors.NewValidationError("at least one managed process must be configured", nil)
	}

	seenIDs := make(map[string]int)
	primaryCount := 0
	for i, processConfig := range processes {
		if err := ValidateProcessID(processConfig.ID); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid process ID at index %d", i),
				err,
			).WithContext("process_id", processConfig.ID)
		}

		if prevIndex, exists := seenIDs[processConfig.ID]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate process ID '%s' found at indices %d and %d", processConfig.ID, prevIndex, i),
				nil,
			)
		}
		seenIDs[processConfig.ID] = i

		if processConfig.Execution.ExecutablePath == "" {
			return errors.NewValidationError(
				fmt.Sprintf("executable path is required for process at index %d", i),
				nil,
			).WithContext("process_id", processConfig.ID)
		}

		if processConfig.Primary {
			primaryCount++
		}
	}

	if primaryCount != 1 {
		return errors.NewValidationError(
			fmt.Sprintf("exactly one process must be marked primary, found %d", primaryCount),
			nil,
		).WithContext("hint", "the primary process receives the resolved configuration path")
	}

	return nil
}

// ValidateProcessID checks that a process ID is usable as an identifier and
// as a file name component (PID files, journal rows, metric labels).
func ValidateProcessID(id string) error {
	if id == "" {
		return errors.NewValidationError("process ID cannot be empty", nil)
	}
	if strings.ContainsAny(id, " \t\n/\\") {
		return errors.NewValidationError(
			fmt.Sprintf("process ID contains invalid characters: %q", id),
			nil,
		)
	}
	return nil
}
