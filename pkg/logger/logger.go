// Package logger provides the logging interface shared by the scheduler,
// the loaders and the daemon.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Logger defines the interface for logging across all asyncload components.
type Logger interface {
	// Info logs an informational message (e.g., "request queued").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "request timed out").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "failed to start server: address in use").
	Error(format string, args ...interface{})

	// Close releases resources held by the logger.
	// Safe to call multiple times. Returns nil for loggers without resources.
	Close() error
}

// StandardLogger wraps the stdlib *log.Logger for console/file output.
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger creates a logger that wraps the given *log.Logger.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

// Info logs an informational message with [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

// Warning logs a warning message with [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

// Error logs an error message with [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close is a no-op for StandardLogger (no resources to release).
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger is a logger that discards all messages.
// Useful for testing or when logging should be disabled.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Info discards the message.
func (n *NopLogger) Info(format string, args ...interface{}) {}

// Warning discards the message.
func (n *NopLogger) Warning(format string, args ...interface{}) {}

// Error discards the message.
func (n *NopLogger) Error(format string, args ...interface{}) {}

// Close is a no-op.
func (n *NopLogger) Close() error {
	return nil
}

// Level is a logging severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// ParseLevel maps "info", "warning"/"warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// LevelLogger drops messages below a minimum level.
type LevelLogger struct {
	next Logger
	min  Level
}

// NewLevelLogger wraps next, forwarding only messages at min or above.
func NewLevelLogger(next Logger, min Level) *LevelLogger {
	return &LevelLogger{next: next, min: min}
}

// Info forwards the message if min is LevelInfo.
func (l *LevelLogger) Info(format string, args ...interface{}) {
	if l.min <= LevelInfo {
		l.next.Info(format, args...)
	}
}

// Warning forwards the message if min is LevelWarning or lower.
func (l *LevelLogger) Warning(format string, args ...interface{}) {
	if l.min <= LevelWarning {
		l.next.Warning(format, args...)
	}
}

// Error always forwards the message.
func (l *LevelLogger) Error(format string, args ...interface{}) {
	l.next.Error(format, args...)
}

// Close closes the wrapped logger.
func (l *LevelLogger) Close() error {
	return l.next.Close()
}

// ToStdLogger returns a *log.Logger whose output is forwarded to l at
// Info level, one call per line. It lets stdlib consumers such as
// http.Server.ErrorLog share the daemon logger.
func ToStdLogger(l Logger) *log.Logger {
	return log.New(&lineWriter{l: l}, "", 0)
}

type lineWriter struct {
	l Logger
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.l.Info("%s", line)
		}
	}
	return len(p), nil
}

// NewWriterLogger returns a StandardLogger writing to w with the standard
// date and time prefix.
func NewWriterLogger(w io.Writer, prefix string) *StandardLogger {
	return NewStandardLogger(log.New(w, prefix, log.LstdFlags))
}

// Ensure implementations satisfy the Logger interface.
var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*LevelLogger)(nil)
)

// MockLogger implements Logger for testing purposes.
// It records all log calls for verification in tests and is safe for
// concurrent use.
type MockLogger struct {
	mu           sync.Mutex
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger creates a new MockLogger for testing.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		InfoCalls:    make([]string, 0),
		WarningCalls: make([]string, 0),
		ErrorCalls:   make([]string, 0),
	}
}

// Info records the formatted message.
func (m *MockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

// Warning records the formatted message.
func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.mu.Lock()
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

// Error records the formatted message.
func (m *MockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	m.CloseCalled = true
	m.mu.Unlock()
	return nil
}

// Contains reports whether any recorded message contains substr.
func (m *MockLogger) Contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, calls := range [][]string{m.InfoCalls, m.WarningCalls, m.ErrorCalls} {
		for _, c := range calls {
			if strings.Contains(c, substr) {
				return true
			}
		}
	}
	return false
}

// Ensure MockLogger satisfies the Logger interface.
var _ Logger = (*MockLogger)(nil)
