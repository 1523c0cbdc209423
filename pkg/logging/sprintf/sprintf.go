package sprintflogging

import (
	"io"
	"log"
	"os"
)

// StdSprintfLogger writes leveled printf-style log lines to stderr via the
// standard library logger, keeping subprocess stdout passthrough clean.
// Used for CLI bootstrap and tests.
type StdSprintfLogger struct {
	logger *log.Logger
}

func NewStdSprintfLogger() *StdSprintfLogger {
	return newStdSprintfLogger(os.Stderr)
}

func newStdSprintfLogger(w io.Writer) *StdSprintfLogger {
	return &StdSprintfLogger{
		logger: log.New(w, "", log.LstdFlags),
	}
}

func (l *StdSprintfLogger) Debugf(format string, args ...interface{}) {
	l.logger.Printf("DEBUG "+format, args...)
}

func (l *StdSprintfLogger) Infof(format string, args ...interface{}) {
	l.logger.Printf("INFO "+format, args...)
}

func (l *StdSprintfLogger) Warnf(format string, args ...interface{}) {
	l.logger.Printf("WARN "+format, args...)
}

func (l *StdSprintfLogger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("ERROR "+format, args...)
}
