package logger

import (
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

var Logger *log.Logger

// Initialize sets up the global logger at the given level. Unknown levels
// fall back to info.
func Initialize(logLevel string) {
	Logger = log.New(os.Stderr)

	level := strings.ToLower(logLevel)
	switch level {
	case "debug":
		Logger.SetLevel(log.DebugLevel)
	case "warn", "warning":
		Logger.SetLevel(log.WarnLevel)
	case "error":
		Logger.SetLevel(log.ErrorLevel)
	case "fatal":
		Logger.SetLevel(log.FatalLevel)
	default:
		Logger.SetLevel(log.InfoLevel)
	}

	Logger.SetReportTimestamp(true)

	Logger.Debug("Logger initialized", "level", level)
}

// Get returns the global logger instance
func Get() *log.Logger {
	if Logger == nil {
		Initialize("info")
	}
	return Logger
}

// WithContext returns a child of the global logger carrying fields
func WithContext(fields ...any) *log.Logger {
	return Get().With(fields...)
}

// Service creates a logger for a specific service
func Service(serviceName string) *log.Logger {
	return WithContext("service", serviceName)
}

// Repository creates a logger for a storage backend
func Repository(repoName string) *log.Logger {
	return WithContext("component", "repository", "repository", repoName)
}

// HTTP creates the logger used by the router and request middleware
func HTTP() *log.Logger {
	return WithContext("component", "http")
}

// Job creates a logger for a maintenance command such as export or rebuild
func Job(name string) *log.Logger {
	return WithContext("component", "job", "job", name)
}
