package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPBackend resolves sftp:// identifiers over SSH. Password auth comes
// from the URL; otherwise the configured key or the default keys in
// ~/.ssh are used. Host keys follow trust-on-first-use against
// KnownHostsPath.
type SFTPBackend struct {
	KeyPath        string
	KnownHostsPath string
	DialTimeout    time.Duration
}

var _ Backend = (*SFTPBackend)(nil)

// NewSFTPBackend creates an SFTPBackend.
func NewSFTPBackend(keyPath, knownHostsPath string) *SFTPBackend {
	return &SFTPBackend{
		KeyPath:        keyPath,
		KnownHostsPath: knownHostsPath,
		DialTimeout:    30 * time.Second,
	}
}

// Resolve downloads and compiles the descriptor.
func (b *SFTPBackend) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	parsed, err := url.Parse(string(ref))
	if err != nil {
		return nil, NewPermanentError("sftp", "parse", err)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return nil, NewPermanentError("sftp", "parse",
			fmt.Errorf("%w: empty or root path in %q", ErrInvalidPath, ref))
	}
	host := parsed.Host
	if parsed.Port() == "" {
		host = net.JoinHostPort(parsed.Hostname(), "22")
	}
	user := ""
	password := ""
	if parsed.User != nil {
		user = parsed.User.Username()
		password, _ = parsed.User.Password()
	}
	if user == "" {
		user = os.Getenv("USER")
	}

	auth, err := buildAuthMethods(password, b.KeyPath)
	if err != nil {
		return nil, NewPermanentError("sftp", "auth", err)
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: newTOFUHostKeyCallback(b.KnownHostsPath),
		Timeout:         b.DialTimeout,
	}

	var d net.Dialer
	rawConn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, classify("sftp", "connect", err)
	}
	stop := context.AfterFunc(ctx, func() { rawConn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(rawConn, host, config)
	if err != nil {
		rawConn.Close()
		return nil, classify("sftp", "handshake", err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sc, err := sftp.NewClient(client)
	if err != nil {
		return nil, classify("sftp", "subsystem", err)
	}
	defer sc.Close()

	f, err := sc.Open(parsed.Path)
	if err != nil {
		return nil, classify("sftp", "open", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxDescriptorSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify("sftp", "read", err)
	}
	if len(data) > MaxDescriptorSize {
		return nil, NewPermanentError("sftp", "read", ErrDescriptorTooLarge)
	}
	return compileDescriptor("sftp", ref, data, nil)
}

// buildAuthMethods constructs SSH auth methods.
// Priority: password (if provided) > explicit key > default key paths.
func buildAuthMethods(password, keyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	keyPaths := resolveSSHKeyPaths(keyPath)
	for _, kp := range keyPaths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("SSH key %q is passphrase-protected; passphrase-protected keys are not supported", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("no authentication method available, provide a password in the URL or an SSH key at %s",
		strings.Join(keyPaths, ", "))
}

// resolveSSHKeyPaths returns the key paths to try: the explicit path
// alone, or ~/.ssh/id_ed25519 and ~/.ssh/id_rsa.
func resolveSSHKeyPaths(explicitPath string) []string {
	if explicitPath != "" {
		return []string{explicitPath}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

// knownHostsMu serializes appends to known_hosts files.
var knownHostsMu sync.Mutex

// newTOFUHostKeyCallback accepts known hosts with a matching key, rejects
// changed keys and records unknown hosts on first use. The file is
// re-read on every call so concurrent first connections see each other.
func newTOFUHostKeyCallback(knownHostsFile string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0700); err != nil {
			return fmt.Errorf("failed to create known_hosts directory: %w", err)
		}
		if _, err := os.Stat(knownHostsFile); err == nil {
			cb, loadErr := knownhosts.New(knownHostsFile)
			if loadErr != nil {
				return fmt.Errorf("failed to load known_hosts: %w", loadErr)
			}
			err := cb(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if !errors.As(err, &keyErr) {
				return err
			}
			if len(keyErr.Want) > 0 {
				return fmt.Errorf("WARNING: host key changed for %s (got %s)\n"+
					"If this is expected, remove the old entry from %s",
					hostname, ssh.FingerprintSHA256(key), knownHostsFile)
			}
		}
		return appendKnownHost(knownHostsFile, hostname, key)
	}
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to write known_hosts: %w", err)
	}
	defer f.Close()
	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
