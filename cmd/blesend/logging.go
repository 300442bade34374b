package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// configureLogger creates a logger from --log-level and --verbose, with --log-level taking precedence.
// Without either flag the config file level applies, which defaults to panic (silent).
func configureLogger(logLevelStr string, verbose bool, fallback logrus.Level) (*logrus.Logger, error) {
	logLevel := fallback

	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	} else if verbose {
		logLevel = logrus.DebugLevel
	}

	logger := logrus.New()
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
