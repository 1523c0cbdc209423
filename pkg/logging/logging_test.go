package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRecordingLogger(prefix string) (Logger, *[]string) {
	var lines []string
	record := func(tag string) func(format string, args ...interface{}) {
		return func(format string, args ...interface{}) {
			lines = append(lines, tag+": "+fmt.Sprintf(format, args...))
		}
	}
	logger := NewLogger(prefix, LogFuncs{
		Debugf: record("debug"),
		Infof:  record("info"),
		Warnf:  record("warn"),
		Errorf: record("error"),
	})
	return logger, &lines
}

func TestLogger_Prefix(t *testing.T) {
	logger, lines := newRecordingLogger("supervisor: ")

	logger.Infof("process %s started", "web")
	logger.Errorf("process %s failed", "evaluator")

	assert.Equal(t, []string{
		"info: supervisor: process web started",
		"error: supervisor: process evaluator failed",
	}, *lines)
}

func TestLogger_LogLevelf(t *testing.T) {
	logger, lines := newRecordingLogger("")

	logger.LogLevelf(LogLevelDebug, "d")
	logger.LogLevelf(LogLevelInfo, "i")
	logger.LogLevelf(LogLevelWarn, "w")
	logger.LogLevelf(LogLevelError, "e")

	assert.Equal(t, []string{"debug: d", "info: i", "warn: w", "error: e"}, *lines)
}

func TestLogger_NilFuncsAreSkipped(t *testing.T) {
	logger := NewLogger("p: ", LogFuncs{})

	// Must not panic when no backend functions are provided.
	logger.Debugf("d")
	logger.Infof("i")
	logger.Warnf("w")
	logger.Errorf("e")
}
