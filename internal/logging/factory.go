package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// FormatText is the traditional text format.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON format.
	FormatJSON LogFormat = "json"
)

// Config represents logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	Prefix  string
	// OutputPaths are zap sink URLs or file paths. Empty means stderr.
	OutputPaths []string
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewLoggerFromConfig creates a logger based on configuration. The returned
// closer releases any files opened for OutputPaths.
func NewLoggerFromConfig(cfg *Config) (ContextLogger, io.Closer, error) {
	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}

	ws, closeOutputs, err := zap.Open(paths...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log outputs %v: %w", paths, err)
	}

	var logger ContextLogger
	switch LogFormat(strings.ToLower(string(cfg.Format))) {
	case FormatText:
		logger = NewLoggerAdapter(NewLoggerWithWriter(ws, cfg.Prefix, cfg.Level))
	default:
		logger = newStructuredLogger(ws, cfg.Service, cfg.Version, cfg.Level)
	}

	return logger, closerFunc(func() error {
		_ = ws.Sync()
		closeOutputs()
		return nil
	}), nil
}

// MustGetLogger creates a logger or panics.
func MustGetLogger(cfg *Config) (ContextLogger, io.Closer) {
	logger, closer, err := NewLoggerFromConfig(cfg)
	if err != nil {
		panic(err)
	}
	return logger, closer
}
