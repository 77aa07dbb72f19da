package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns the logger shared by every component. Logs go to stderr
// so reports written to stdout stay machine readable.
func NewLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// LoggerOrDiscard returns logger, or a discarding logger when it is nil.
func LoggerOrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return DiscardLogger()
	}
	return logger
}

// IsVerbose reports whether debug logging is enabled.
func IsVerbose(logger *logrus.Logger) bool {
	return logger != nil && logger.IsLevelEnabled(logrus.DebugLevel)
}
