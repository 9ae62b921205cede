package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatText:
		return Format(s), nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown log format %q (want json or text)", s)
}

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64
	// MaxBackups is the maximum number of backup files to keep
	MaxBackups int
}

// LogrusLogger implements Logger on top of a logrus entry
type LogrusLogger struct {
	entry  *logrus.Entry
	closer io.Closer
}

// New creates a logger writing to out
func New(out io.Writer, format Format, level Level) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level.logrus())
	l.SetFormatter(formatter(format))
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// NewConsoleLogger logs human-readable lines to stderr
func NewConsoleLogger(level Level) *LogrusLogger {
	l := New(os.Stderr, FormatText, level)
	l.entry.Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.Kitchen,
	})
	return l
}

// NewFileLogger creates a logger appending to a size-rotated file
func NewFileLogger(config FileLoggerConfig) (*LogrusLogger, error) {
	file, err := openRotatingFile(config.Path, config.MaxSize, config.MaxBackups)
	if err != nil {
		return nil, err
	}
	l := New(file, config.Format, config.Level)
	l.closer = file
	return l, nil
}

func formatter(format Format) logrus.Formatter {
	if format == FormatJSON {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}
	}
	// Files get full timestamps and no color codes
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

// Debug logs a debug message
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Debug(msg)
}

// Info logs an info message
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Info(msg)
}

// Warn logs a warning message
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Warn(msg)
}

// Error logs an error message
func (l *LogrusLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	entry := l.with(ctx, fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

func (l *LogrusLogger) with(ctx context.Context, fields Fields) *logrus.Entry {
	entry := l.entry
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return entry
}

// WithFields returns a logger with additional fields sharing the same output
func (l *LogrusLogger) WithFields(fields Fields) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Close closes the underlying file, if any
func (l *LogrusLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
