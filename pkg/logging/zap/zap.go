package zaplogging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapSprintfLogger adapts a zap sugared logger to the printf-style log
// functions expected by logging.LogFuncs.
type ZapSprintfLogger struct {
	sugar *zap.SugaredLogger
}

// newZapConfig builds the console-encoded configuration at the given level
// ("debug", "info", "warn", "error"). An unknown level falls back to info.
// Supervisor logs go to stderr so that subprocess stdout passthrough stays
// unpolluted.
func newZapConfig(level string) zap.Config {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.Encoding = "console"
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return config
}

// NewZapSprintfLogger builds a console-encoded zap logger writing to stderr.
func NewZapSprintfLogger(level string) (*ZapSprintfLogger, error) {
	logger, err := newZapConfig(level).Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, err
	}

	return &ZapSprintfLogger{sugar: logger.Sugar()}, nil
}

func (l *ZapSprintfLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *ZapSprintfLogger) Infof(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *ZapSprintfLogger) Warnf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *ZapSprintfLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered log entries. Call before process exit.
func (l *ZapSprintfLogger) Sync() error {
	return l.sugar.Sync()
}
