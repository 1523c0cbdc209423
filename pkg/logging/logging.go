package logging

// Log levels for LogLevelf dispatch
const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Logger is the logging interface used across the supervisor packages.
type Logger interface {
	LogLevelf(level int, format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// LogFuncs bundles the leveled printf-style functions of a logging backend.
type LogFuncs struct {
	Debugf func(format string, args ...interface{})
	Infof  func(format string, args ...interface{})
	Warnf  func(format string, args ...interface{})
	Errorf func(format string, args ...interface{})
}

type prefixLogger struct {
	prefix string
	funcs  LogFuncs
}

// NewLogger wraps backend log functions with a fixed message prefix.
func NewLogger(prefix string, funcs LogFuncs) Logger {
	return &prefixLogger{
		prefix: prefix,
		funcs:  funcs,
	}
}

func (l *prefixLogger) LogLevelf(level int, format string, args ...interface{}) {
	switch level {
	case LogLevelDebug:
		l.Debugf(format, args...)
	case LogLevelWarn:
		l.Warnf(format, args...)
	case LogLevelError:
		l.Errorf(format, args...)
	default:
		l.Infof(format, args...)
	}
}

func (l *prefixLogger) Debugf(format string, args ...interface{}) {
	if l.funcs.Debugf != nil {
		l.funcs.Debugf(l.prefix+format, args...)
	}
}

func (l *prefixLogger) Infof(format string, args ...interface{}) {
	if l.funcs.Infof != nil {
		l.funcs.Infof(l.prefix+format, args...)
	}
}

func (l *prefixLogger) Warnf(format string, args ...interface{}) {
	if l.funcs.Warnf != nil {
		l.funcs.Warnf(l.prefix+format, args...)
	}
}

func (l *prefixLogger) Errorf(format string, args ...interface{}) {
	if l.funcs.Errorf != nil {
		l.funcs.Errorf(l.prefix+format, args...)
	}
}
