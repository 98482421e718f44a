package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	std = newLogger(os.Stdout, os.Getenv("LOG_FORMAT"))

	slogOnce   sync.Once
	slogLogger *slog.Logger
)

func newLogger(out io.Writer, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableLevelTruncation: true})
	}
	// Filtering happens in this package so SetLevel stays at the most verbose.
	l.SetLevel(logrus.DebugLevel)
	return l
}

// parseLevel resolves the level from the DEBUG and LOG_LEVEL values.
func parseLevel(debug, level string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		currentLevel = parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// SetOutput redirects all log output. Intended for tests and the CLI.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		std.Debugf(format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		std.Infof(format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		std.Warnf(format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		std.Errorf(format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	std.Fatalf(format, args...)
}

// Printf writes a message that should always print, regardless of level
func Printf(format string, args ...interface{}) {
	std.Printf(format, args...)
}

// Println writes a message that should always print, regardless of level
func Println(args ...interface{}) {
	std.Println(args...)
}

// Slog returns a *slog.Logger writing into the same sink at the current level.
// Libraries that accept a slog logger (the gg renderer) are pointed here.
func Slog() *slog.Logger {
	slogOnce.Do(func() {
		level := slog.LevelInfo
		switch GetLevel() {
		case LevelDebug:
			level = slog.LevelDebug
		case LevelWarn:
			level = slog.LevelWarn
		case LevelError:
			level = slog.LevelError
		}
		w := std.WriterLevel(logrus.DebugLevel)
		slogLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	})
	return slogLogger
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
