package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the process logger: minimum level, output format and the
// optional rotating file target that supplements stdout.
type Config struct {
	Level      slog.Level
	OutputFile string // rotating log file; empty logs to stdout only
	MaxSize    int    // megabytes per file before rotation
	MaxBackups int    // rotated files to keep
	MaxAge     int    // days to keep rotated files
	Compress   bool   // gzip rotated files
	JSON       bool   // JSON handler instead of text
	Component  string // when set, tags every record with a component attribute
}

// DefaultConfig is JSON at Info with rotation limits suited to a
// long-running worker host.
func DefaultConfig() Config {
	return Config{
		Level:      slog.LevelInfo,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		JSON:       true,
	}
}

func New(cfg Config) *slog.Logger {
	logger := slog.New(newHandler(cfg, newWriter(cfg)))
	if cfg.Component != "" {
		logger = logger.With("component", cfg.Component)
	}
	return logger
}

func NewDefault() *slog.Logger {
	return New(DefaultConfig())
}

// ForComponent tags an existing logger with the subsystem it serves, so one
// root logger can fan out across the host's components.
func ForComponent(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

func newWriter(cfg Config) io.Writer {
	if cfg.OutputFile == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}

func newHandler(cfg Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.JSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
