package clicommand

import (
	"os"

	"github.com/gridhome/energy-supervisor/logger"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

var ConfigFlag = cli.StringFlag{
	Name:   "config",
	Value:  "",
	Usage:  "Path to a configuration file",
	EnvVar: "ENERGY_SUPERVISOR_CONFIG",
}

var DebugFlag = cli.BoolFlag{
	Name:   "debug",
	Usage:  "Enable debug mode",
	EnvVar: "ENERGY_SUPERVISOR_DEBUG",
}

var LogLevelFlag = cli.StringFlag{
	Name:   "log-level",
	Value:  "notice",
	Usage:  "Set the log level, either debug, info, error, warn or fatal",
	EnvVar: "ENERGY_SUPERVISOR_LOG_LEVEL",
}

var NoColorFlag = cli.BoolFlag{
	Name:   "no-color",
	Usage:  "Don't show colors in logging",
	EnvVar: "ENERGY_SUPERVISOR_NO_COLOR",
}

// CreateLogger builds a logger from the Debug, LogLevel and NoColor fields
// of a command config struct.
func CreateLogger(cfg interface{}) logger.Logger {
	l := &logger.TextLogger{
		Level:  logger.NOTICE,
		Colors: logger.ColorsAvailable(),
		Writer: os.Stderr,
	}

	levelName, err := reflections.GetField(cfg, "LogLevel")
	if name, ok := levelName.(string); ok && err == nil && name != "" {
		level, err := logger.LevelFromString(name)
		if err != nil {
			l.Fatal("%v", err)
		}
		l.SetLevel(level)
	}

	// A debug flag trumps the configured log level
	debug, err := reflections.GetField(cfg, "Debug")
	if debug == true && err == nil {
		l.SetLevel(logger.DEBUG)
	}

	noColor, err := reflections.GetField(cfg, "NoColor")
	if noColor == true && err == nil {
		l.Colors = false
	}

	return l
}
