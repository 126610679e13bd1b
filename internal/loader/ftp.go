package loader

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/warpdl/asyncload/pkg/loadlib"
)

// FTPBackend resolves ftp:// and ftps:// identifiers. Credentials come
// from the URL userinfo and default to anonymous.
type FTPBackend struct {
	// DialTimeout bounds the control connection setup.
	DialTimeout time.Duration
	// TLSConfig overrides the explicit TLS settings used for ftps://.
	TLSConfig *tls.Config
}

var _ Backend = (*FTPBackend)(nil)

// NewFTPBackend creates an FTPBackend with a 30 second dial timeout.
func NewFTPBackend() *FTPBackend {
	return &FTPBackend{DialTimeout: 30 * time.Second}
}

type ftpTarget struct {
	host     string
	path     string
	user     string
	password string
	useTLS   bool
}

func parseFTPRef(ref loadlib.ClassRef) (*ftpTarget, error) {
	parsed, err := url.Parse(string(ref))
	if err != nil {
		return nil, NewPermanentError("ftp", "parse", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "ftp" && scheme != "ftps" {
		return nil, NewPermanentError("ftp", "parse",
			fmt.Errorf("unsupported scheme %q, expected ftp or ftps", scheme))
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, NewPermanentError("ftp", "parse",
			fmt.Errorf("%w: empty or root path in %q", ErrInvalidPath, ref))
	}
	t := &ftpTarget{
		host:     parsed.Host,
		path:     parsed.Path,
		user:     "anonymous",
		password: "anonymous",
		useTLS:   scheme == "ftps",
	}
	if parsed.User != nil {
		t.user = parsed.User.Username()
		if p, ok := parsed.User.Password(); ok {
			t.password = p
		}
	}
	if parsed.Port() == "" {
		t.host = net.JoinHostPort(parsed.Hostname(), "21")
	}
	return t, nil
}

func (b *FTPBackend) connect(ctx context.Context, t *ftpTarget) (*ftp.ServerConn, error) {
	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(b.DialTimeout),
		ftp.DialWithContext(ctx),
	}
	if t.useTLS {
		cfg := b.TLSConfig
		if cfg == nil {
			hostname := t.host
			if h, _, err := net.SplitHostPort(t.host); err == nil {
				hostname = h
			}
			cfg = &tls.Config{ServerName: hostname, MinVersion: tls.VersionTLS12}
		}
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(cfg))
	}
	conn, err := ftp.Dial(t.host, dialOpts...)
	if err != nil {
		return nil, err
	}
	if err := conn.Login(t.user, t.password); err != nil {
		conn.Quit()
		return nil, err
	}
	return conn, nil
}

// Resolve downloads and compiles the descriptor.
func (b *FTPBackend) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	t, err := parseFTPRef(ref)
	if err != nil {
		return nil, err
	}
	conn, err := b.connect(ctx, t)
	if err != nil {
		return nil, classify("ftp", "connect", err)
	}
	defer conn.Quit()

	// the control connection does not watch ctx after dialing
	stop := context.AfterFunc(ctx, func() { conn.Quit() })
	defer stop()

	if size, err := conn.FileSize(t.path); err == nil && size > MaxDescriptorSize {
		return nil, NewPermanentError("ftp", "size", ErrDescriptorTooLarge)
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify("ftp", "retr", err)
	}
	data, err := io.ReadAll(io.LimitReader(resp, MaxDescriptorSize+1))
	resp.Close()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify("ftp", "read", err)
	}
	if len(data) > MaxDescriptorSize {
		return nil, NewPermanentError("ftp", "read", ErrDescriptorTooLarge)
	}
	return compileDescriptor("ftp", ref, data, nil)
}
