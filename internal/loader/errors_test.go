package loader

import (
	"errors"
	"net/textproto"
	"os"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"not exist", os.ErrNotExist, false},
		{"ftp 4xx", &textproto.Error{Code: 421, Msg: "busy"}, true},
		{"ftp 5xx", &textproto.Error{Code: 550, Msg: "no such file"}, false},
		{"net error", timeoutErr{}, true},
		{"other", errors.New("odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("ftp", "retr", tt.err)
			var le *Error
			if !errors.As(err, &le) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if le.IsTransient() != tt.transient {
				t.Fatalf("transient=%v, want %v", le.IsTransient(), tt.transient)
			}
			if !errors.Is(err, tt.err) {
				t.Fatal("cause not preserved")
			}
		})
	}
	if classify("ftp", "retr", nil) != nil {
		t.Fatal("nil must stay nil")
	}
	wrapped := NewTransientError("http", "get", errors.New("503"))
	if classify("ftp", "retr", wrapped) != error(wrapped) {
		t.Fatal("existing loader errors must pass through")
	}
}

func TestError_Format(t *testing.T) {
	err := NewPermanentError("sftp", "open", errors.New("denied"))
	if err.Error() != "sftp open: denied" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (&Error{Scheme: "file", Op: "read"}).Error() != "file read" {
		t.Fatal("unexpected message without cause")
	}
}
