// Package dlog is the logging facade for linescan. All packages log through
// it rather than importing the underlying logger directly, so the backend
// can be swapped or silenced in one place (e.g. for tests and -quiet mode).
package dlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Setup configures the log level from its string representation. Unknown
// levels fall back to info. When quiet is set all output is discarded.
func Setup(level string, quiet bool) {
	if quiet {
		logger.SetOutput(io.Discard)
		return
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
}

// Fields is re-exported so callers don't need a logrus import.
type Fields = logrus.Fields

// WithFields returns an entry carrying structured fields.
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debug logs at debug level.
func Debug(args ...interface{}) { logger.Debug(args...) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...interface{}) { logger.Debugf(format, args...) }

// Info logs at info level.
func Info(args ...interface{}) { logger.Info(args...) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...interface{}) { logger.Infof(format, args...) }

// Warn logs at warning level.
func Warn(args ...interface{}) { logger.Warn(args...) }

// Warnf logs a formatted message at warning level.
func Warnf(format string, args ...interface{}) { logger.Warnf(format, args...) }

// Error logs at error level.
func Error(args ...interface{}) { logger.Error(args...) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...interface{}) { logger.Errorf(format, args...) }
