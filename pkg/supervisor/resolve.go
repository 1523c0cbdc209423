package supervisor

import (
	"os"

	"github.com/fair-eva/supervisor/pkg/logging"
)

// DefaultConfigPath is the application configuration file handed to the
// primary process when no usable path is given on the command line.
const DefaultConfigPath = "config.ini"

// ResolveConfigPath resolves the application configuration path from the
// optional command-line argument. A given argument that names an existing
// file wins; anything else falls back to DefaultConfigPath. The fallback is
// never an error: a diagnostic is emitted and startup proceeds. Resolution
// happens once, at startup.
func ResolveConfigPath(arg string, logger logging.Logger) (string, bool) {
	if arg != "" {
		if fileExists(arg) {
			return arg, false
		}
		logger.Warnf("%s does not exist, using default path (%s)", arg, DefaultConfigPath)
		return DefaultConfigPath, true
	}

	if !fileExists(DefaultConfigPath) {
		logger.Warnf("%s does not exist, using default path (%s)", DefaultConfigPath, DefaultConfigPath)
		return DefaultConfigPath, true
	}
	return DefaultConfigPath, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
