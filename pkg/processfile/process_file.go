package processfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fair-eva/supervisor/pkg/errors"
	"github.com/fair-eva/supervisor/pkg/logging"
)

// DefaultAppName is used for the PID directory when no app name is configured.
const DefaultAppName = "fair-supervisor"

// ProcessFileConfig controls where PID files for managed processes live.
type ProcessFileConfig struct {
	AppName       string `yaml:"app_name,omitempty"`
	BaseDirectory string `yaml:"base_directory,omitempty"`
}

// ProcessFileManager generates, writes and removes PID files for managed
// processes so that external tooling can discover them.
type ProcessFileManager struct {
	config ProcessFileConfig
	logger logging.Logger
}

func NewProcessFileManager(config ProcessFileConfig, logger logging.Logger) *ProcessFileManager {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}
	if config.BaseDirectory == "" {
		config.BaseDirectory = filepath.Join(os.TempDir(), config.AppName)
	}
	return &ProcessFileManager{
		config: config,
		logger: logger,
	}
}

// GeneratePIDFilePath returns the PID file path for a process ID.
func (m *ProcessFileManager) GeneratePIDFilePath(processID string) string {
	return filepath.Join(m.config.BaseDirectory, processID+".pid")
}

// WritePIDFile records the PID of a started process.
func (m *ProcessFileManager) WritePIDFile(processID string, pid int) error {
	path := m.GeneratePIDFilePath(processID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("failed to create PID file directory", err).
			WithContext("process_id", processID).
			WithContext("path", path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return errors.NewIOError("failed to write PID file", err).
			WithContext("process_id", processID).
			WithContext("path", path)
	}

	m.logger.Debugf("PID file written, id: %s, path: %s, PID: %d", processID, path, pid)
	return nil
}

// ReadPIDFile returns the PID recorded for a process ID.
func (m *ProcessFileManager) ReadPIDFile(processID string) (int, error) {
	path := m.GeneratePIDFilePath(processID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("PID file not found", err).
				WithContext("process_id", processID).
				WithContext("path", path)
		}
		return 0, errors.NewIOError("failed to read PID file", err).
			WithContext("process_id", processID).
			WithContext("path", path)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.NewValidationError("PID file does not contain a valid PID", err).
			WithContext("process_id", processID).
			WithContext("path", path)
	}
	return pid, nil
}

// RemovePIDFile deletes the PID file for a process ID. Missing files are not
// an error.
func (m *ProcessFileManager) RemovePIDFile(processID string) error {
	path := m.GeneratePIDFilePath(processID)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove PID file", err).
			WithContext("process_id", processID).
			WithContext("path", path)
	}
	return nil
}
