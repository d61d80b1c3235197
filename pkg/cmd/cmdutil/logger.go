// Package cmdutil holds the setup shared by the subcommands.
package cmdutil

import (
	"os"

	"github.com/mpapenbr/pylonrace-go/log"
	"github.com/mpapenbr/pylonrace-go/pkg/config"
)

const logFileMaxSizeMB = 50

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLoggers creates the application and the sql logger from the config
// values and installs the former as default logger.
func SetupLoggers() (logger, sqlLogger *log.Logger) {
	opts := []log.Option{
		log.WithCaller(true),
		log.AddCallerSkip(1),
		log.WithFilter(config.LogFilter),
		log.WithRotation(config.LogFile, logFileMaxSizeMB),
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.InfoLevel),
			opts...)
		sqlLogger = log.New(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			opts...)

	default:
		logger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.DebugLevel),
			opts...)

		sqlLogger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			opts...)
	}

	log.ResetDefault(logger)
	return logger, sqlLogger
}
