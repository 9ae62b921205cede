package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestFileLogger(t *testing.T, config FileLoggerConfig) (*LogrusLogger, string) {
	t.Helper()
	if config.Path == "" {
		config.Path = filepath.Join(t.TempDir(), "test.log")
	}
	logger, err := NewFileLogger(config)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	return logger, config.Path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewFileLogger_CreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "test.log")
	logger, _ := newTestFileLogger(t, FileLoggerConfig{Path: logPath, Level: InfoLevel})
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestFileLogger_LogLevels(t *testing.T) {
	logger, path := newTestFileLogger(t, FileLoggerConfig{Format: FormatText, Level: InfoLevel})

	ctx := context.Background()
	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", nil, nil)
	logger.Close()

	content := readLog(t, path)
	if strings.Contains(content, "debug message") {
		t.Error("Debug message should be filtered at INFO level")
	}
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("%q should be present", want)
		}
	}
}

func TestFileLogger_TextFormat(t *testing.T) {
	logger, path := newTestFileLogger(t, FileLoggerConfig{Format: FormatText, Level: InfoLevel})
	logger.Info(context.Background(), "test message", Fields{"key": "value", "count": 42})
	logger.Close()

	content := readLog(t, path)
	for _, want := range []string{"level=info", `msg="test message"`, "key=value", "count=42"} {
		if !strings.Contains(content, want) {
			t.Errorf("log line %q should contain %q", content, want)
		}
	}
}

func TestFileLogger_JSONFormat(t *testing.T) {
	logger, path := newTestFileLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})
	logger.Error(context.Background(), "operation failed", errors.New("something went wrong"), Fields{"operation": "copy"})
	logger.Close()

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(readLog(t, path)), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}

	want := map[string]interface{}{
		"level":     "error",
		"message":   "operation failed",
		"operation": "copy",
		"error":     "something went wrong",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp should be present")
	}
}

func TestLogrusLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, InfoLevel)

	logger.WithFields(Fields{"component": "coordinator"}).Info(context.Background(), "test", Fields{"action": "copy"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["component"] != "coordinator" || entry["action"] != "copy" {
		t.Errorf("entry = %v, want base and call fields", entry)
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logger, path := newTestFileLogger(t, FileLoggerConfig{
		Format:     FormatText,
		Level:      InfoLevel,
		MaxSize:    100,
		MaxBackups: 2,
	})

	for i := 0; i < 20; i++ {
		logger.Info(context.Background(), "This is a test message that is long enough to trigger rotation eventually", nil)
	}
	logger.Close()

	for _, p := range []string{path, path + ".1", path + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should exist: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backups beyond MaxBackups should be removed")
	}
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	logger, path := newTestFileLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.Info(context.Background(), "concurrent message", Fields{"goroutine": id, "iteration": j})
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	lines := strings.Split(strings.TrimSpace(readLog(t, path)), "\n")
	if len(lines) != 1000 {
		t.Fatalf("got %d lines, want 1000", len(lines))
	}
	for _, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", nil, nil)

	if logger.WithFields(Fields{"key": "value"}) == nil {
		t.Error("WithFields should return a logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "text", ""} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}
