package main

import (
	"fmt"
	"os"

	"github.com/fair-eva/supervisor/pkg/logging"
	sprintflogging "github.com/fair-eva/supervisor/pkg/logging/sprintf"
	zaplogging "github.com/fair-eva/supervisor/pkg/logging/zap"
	"github.com/fair-eva/supervisor/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	SupervisorConfig string `long:"supervisor-config" short:"s" description:"Supervisor configuration file path (YAML); built-in defaults when omitted"`
	RunDuration      int    `long:"run-duration" description:"Duration in seconds to run (debug feature)"`
	Args             struct {
		ConfigPath string `positional-arg-name:"config-file-path" description:"Application configuration file path passed to the primary process (falls back to config.ini)"`
	} `positional-args:"yes"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

// resolveLogLevel peeks at the supervisor configuration for the log level.
// Load errors are ignored here; Run reports them with full context.
func resolveLogLevel(configFile string) string {
	if configFile == "" {
		return "info"
	}
	config, err := supervisor.LoadConfigFromFile(configFile)
	if err != nil {
		return "info"
	}
	return config.Supervisor.LogLevel
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	var logFuncs logging.LogFuncs
	var flushLogs func()

	zapLogger, err := zaplogging.NewZapSprintfLogger(resolveLogLevel(opts.SupervisorConfig))
	if err != nil {
		// Fall back to plain stdout logging rather than running silent.
		fmt.Fprintf(os.Stderr, "Logger initialization failed, using plain logging: %v\n", err)
		stdLogger := sprintflogging.NewStdSprintfLogger()
		logFuncs = logging.LogFuncs{
			Debugf: stdLogger.Debugf,
			Infof:  stdLogger.Infof,
			Warnf:  stdLogger.Warnf,
			Errorf: stdLogger.Errorf,
		}
		flushLogs = func() {}
	} else {
		logFuncs = logging.LogFuncs{
			Debugf: zapLogger.Debugf,
			Infof:  zapLogger.Infof,
			Warnf:  zapLogger.Warnf,
			Errorf: zapLogger.Errorf,
		}
		flushLogs = func() { zapLogger.Sync() }
	}
	logger := logging.NewLogger(logPrefix("supervisor"), logFuncs)

	exitCode, err := supervisor.Run(supervisor.RunOptions{
		ConfigPathArg:        opts.Args.ConfigPath,
		SupervisorConfigFile: opts.SupervisorConfig,
		RunDuration:          opts.RunDuration,
	}, logger)
	if err != nil {
		logger.Errorf("Failed to run: %v", err)
	}

	flushLogs()
	os.Exit(exitCode)
}
