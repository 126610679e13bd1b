package loadcli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DaemonURI is a parsed daemon address.
type DaemonURI struct {
	Scheme  string // "unix", "pipe" or "tcp"
	Address string // socket path, pipe name or host:port
}

const (
	SchemeUnix = "unix"
	SchemePipe = "pipe"
	SchemeTCP  = "tcp"
)

var (
	ErrEmptyURI          = errors.New("daemon URI cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	ErrInvalidPath       = errors.New("invalid path in URI")
)

// ParseDaemonURI parses "unix:///path/to.sock", "pipe://name" or
// "tcp://host:port". A bare host:port is taken as tcp.
func ParseDaemonURI(rawURI string) (*DaemonURI, error) {
	rawURI = strings.TrimSpace(rawURI)
	if rawURI == "" {
		return nil, ErrEmptyURI
	}
	if !strings.Contains(rawURI, "://") {
		rawURI = SchemeTCP + "://" + rawURI
	}
	parsed, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case SchemeUnix:
		p := parsed.Path
		if p == "" {
			p = parsed.Opaque
		}
		if p == "" {
			return nil, ErrInvalidPath
		}
		return &DaemonURI{Scheme: SchemeUnix, Address: p}, nil
	case SchemePipe:
		name := strings.Trim(parsed.Host+parsed.Path, "/")
		if name == "" {
			return nil, ErrInvalidPath
		}
		return &DaemonURI{Scheme: SchemePipe, Address: name}, nil
	case SchemeTCP:
		if parsed.Host == "" || parsed.Port() == "" {
			return nil, fmt.Errorf("%w: tcp address needs host:port", ErrInvalidPath)
		}
		return &DaemonURI{Scheme: SchemeTCP, Address: parsed.Host}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// String renders the URI back.
func (u *DaemonURI) String() string {
	return u.Scheme + "://" + u.Address
}
