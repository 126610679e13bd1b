package loadcli

import (
	"errors"
	"testing"
)

func TestParseDaemonURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		scheme  string
		address string
		err     error
	}{
		{"unix", "unix:///tmp/asyncload.sock", SchemeUnix, "/tmp/asyncload.sock", nil},
		{"tcp", "tcp://127.0.0.1:7490", SchemeTCP, "127.0.0.1:7490", nil},
		{"bare host port", "localhost:9000", SchemeTCP, "localhost:9000", nil},
		{"spaces", "  tcp://127.0.0.1:1  ", SchemeTCP, "127.0.0.1:1", nil},
		{"empty", "", "", "", ErrEmptyURI},
		{"pipe", "pipe://asyncload", SchemePipe, "asyncload", nil},
		{"pipe without name", "pipe://", "", "", ErrInvalidPath},
		{"http", "http://localhost:1", "", "", ErrUnsupportedScheme},
		{"unix without path", "unix://", "", "", ErrInvalidPath},
		{"tcp without port", "tcp://localhost", "", "", ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseDaemonURI(tt.in)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %v", tt.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDaemonURI: %v", err)
			}
			if u.Scheme != tt.scheme || u.Address != tt.address {
				t.Fatalf("got %s %s", u.Scheme, u.Address)
			}
		})
	}
}

func TestDaemonURI_String(t *testing.T) {
	u := &DaemonURI{Scheme: SchemeUnix, Address: "/run/a.sock"}
	if u.String() != "unix:///run/a.sock" {
		t.Fatalf("got %s", u.String())
	}
	u = &DaemonURI{Scheme: SchemeTCP, Address: "h:1"}
	if u.String() != "tcp://h:1" {
		t.Fatalf("got %s", u.String())
	}
	u = &DaemonURI{Scheme: SchemePipe, Address: "asyncload"}
	if u.String() != "pipe://asyncload" {
		t.Fatalf("got %s", u.String())
	}
}
