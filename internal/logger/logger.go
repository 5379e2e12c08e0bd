// Package logger builds the hclog loggers used across sift.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// EnvLevel names the environment variable consulted when no level is
// configured.
const EnvLevel = "SIFT_LOG_LEVEL"

// Options configures New.
type Options struct {
	Name   string
	Level  string    // configured level; empty falls back to SIFT_LOG_LEVEL, then INFO
	JSON   bool      // emit JSON lines instead of text
	Output io.Writer // defaults to os.Stderr so reports on stdout stay clean
}

// New creates a logger. The configured level wins over the environment.
func New(opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:        opts.Name,
		Level:       DetermineLevel(opts.Level),
		JSONFormat:  opts.JSON,
		DisableTime: true,
		Output:      out,
	})
}

// DetermineLevel returns the configured level, else the level from
// SIFT_LOG_LEVEL, else INFO.
func DetermineLevel(configured string) hclog.Level {
	if configured != "" {
		return ParseLevel(configured)
	}
	return ParseLevel(os.Getenv(EnvLevel))
}

// ParseLevel converts a level name to hclog.Level. Unknown names are INFO.
func ParseLevel(s string) hclog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return hclog.Trace
	case "DEBUG":
		return hclog.Debug
	case "INFO":
		return hclog.Info
	case "WARN", "WARNING":
		return hclog.Warn
	case "ERROR":
		return hclog.Error
	case "OFF":
		return hclog.Off
	default:
		return hclog.Info
	}
}
