package logger

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
)

func TestStandardLogger_Prefixes(t *testing.T) {
	tests := []struct {
		name   string
		call   func(Logger)
		prefix string
		want   string
	}{
		{"info", func(l Logger) { l.Info("queued %d", 3) }, "[INFO]", "queued 3"},
		{"warning", func(l Logger) { l.Warning("timed out %s", "file://a") }, "[WARNING]", "timed out file://a"},
		{"error", func(l Logger) { l.Error("failed: %v", "boom") }, "[ERROR]", "failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := NewStandardLogger(log.New(buf, "", 0))
			tt.call(l)
			out := buf.String()
			if !strings.Contains(out, tt.prefix) {
				t.Errorf("expected %s prefix, got: %s", tt.prefix, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("expected message content, got: %s", out)
			}
			if err := l.Close(); err != nil {
				t.Errorf("expected nil error, got: %v", err)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("test")
	l.Warning("test")
	l.Error("test")
	if err := l.Close(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestMockLogger_RecordsCalls(t *testing.T) {
	l := NewMockLogger()
	l.Info("info %d", 1)
	l.Warning("warn %s", "test")
	l.Error("err %v", "fail")

	if len(l.InfoCalls) != 1 || l.InfoCalls[0] != "info 1" {
		t.Errorf("unexpected info calls %v", l.InfoCalls)
	}
	if len(l.WarningCalls) != 1 || l.WarningCalls[0] != "warn test" {
		t.Errorf("unexpected warning calls %v", l.WarningCalls)
	}
	if len(l.ErrorCalls) != 1 || l.ErrorCalls[0] != "err fail" {
		t.Errorf("unexpected error calls %v", l.ErrorCalls)
	}
	if !l.Contains("fail") || l.Contains("missing") {
		t.Error("Contains mismatch")
	}
	l.Close()
	if !l.CloseCalled {
		t.Error("CloseCalled should be true after Close()")
	}
}

func TestMockLogger_Concurrent(t *testing.T) {
	l := NewMockLogger()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Info("msg %d", j)
			}
		}()
	}
	wg.Wait()
	if len(l.InfoCalls) != 1000 {
		t.Fatalf("expected 1000 calls, got %d", len(l.InfoCalls))
	}
}

// failingCloseLogger returns an error on Close.
type failingCloseLogger struct {
	NopLogger
	closeErr error
}

func (f *failingCloseLogger) Close() error {
	return f.closeErr
}

func TestMultiLogger_BroadcastsToAll(t *testing.T) {
	mock1, mock2 := NewMockLogger(), NewMockLogger()
	multi := NewMultiLogger(mock1, nil, mock2)
	multi.Info("info msg")
	multi.Warning("warn msg")
	multi.Error("error msg")

	for i, m := range []*MockLogger{mock1, mock2} {
		if len(m.InfoCalls) != 1 || len(m.WarningCalls) != 1 || len(m.ErrorCalls) != 1 {
			t.Errorf("logger %d missed a message", i)
		}
	}
	if err := multi.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestMultiLogger_Close_JoinsErrors(t *testing.T) {
	err1 := errors.New("console failed to close")
	err2 := errors.New("event log failed to close")
	mock := NewMockLogger()
	multi := NewMultiLogger(&failingCloseLogger{closeErr: err1}, mock, &failingCloseLogger{closeErr: err2})

	err := multi.Close()
	if !errors.Is(err, err1) || !errors.Is(err, err2) {
		t.Errorf("expected both close errors, got %v", err)
	}
	if !mock.CloseCalled {
		t.Error("expected mock logger to be closed after a failure")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarning, false},
		{"warning", LevelWarning, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLevel(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLevelLogger_Filters(t *testing.T) {
	mock := NewMockLogger()
	l := NewLevelLogger(mock, LevelWarning)
	l.Info("dropped")
	l.Warning("kept warning")
	l.Error("kept error")

	if len(mock.InfoCalls) != 0 {
		t.Errorf("expected info dropped, got %v", mock.InfoCalls)
	}
	if len(mock.WarningCalls) != 1 || len(mock.ErrorCalls) != 1 {
		t.Error("expected warning and error forwarded")
	}
	l.Close()
	if !mock.CloseCalled {
		t.Error("expected close forwarded")
	}
}

func TestToStdLogger_ForwardsLines(t *testing.T) {
	mock := NewMockLogger()
	std := ToStdLogger(mock)
	std.Print("http: TLS handshake error\nsecond line")

	if len(mock.InfoCalls) != 2 {
		t.Fatalf("expected 2 forwarded lines, got %v", mock.InfoCalls)
	}
	if mock.InfoCalls[0] != "http: TLS handshake error" || mock.InfoCalls[1] != "second line" {
		t.Errorf("unexpected lines %v", mock.InfoCalls)
	}
}
