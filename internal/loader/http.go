package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/warpdl/asyncload/pkg/loadlib"
	"golang.org/x/net/proxy"
)

// MaxDescriptorSize bounds the bytes read for a single remote descriptor.
const MaxDescriptorSize = 1 << 20

const defaultHTTPLoadTimeout = 30 * time.Second

var (
	ErrInvalidProxyURL    = errors.New("invalid proxy URL")
	ErrUnsupportedProxy   = errors.New("unsupported proxy scheme")
	ErrDescriptorTooLarge = errors.New("descriptor exceeds size limit")
)

var supportedProxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// NewHTTPClient creates the client used by the http backend. An empty
// proxyURL means a direct connection; socks5:// proxies dial through
// golang.org/x/net/proxy and http(s):// proxies use the transport proxy.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{Timeout: defaultHTTPLoadTimeout}, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedProxySchemes[parsed.Scheme] {
		return nil, ErrUnsupportedProxy
	}

	transport := &http.Transport{}
	if parsed.Scheme == "socks5" {
		var auth *proxy.Auth
		if parsed.User != nil {
			pass, _ := parsed.User.Password()
			auth = &proxy.Auth{
				User:     parsed.User.Username(),
				Password: pass,
			}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
	} else {
		transport.Proxy = http.ProxyURL(parsed)
	}
	return &http.Client{Transport: transport, Timeout: defaultHTTPLoadTimeout}, nil
}

// HTTPBackend resolves http:// and https:// identifiers by fetching a
// YAML or JSON descriptor.
type HTTPBackend struct {
	client *http.Client
}

var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend using client, or a default one if nil.
func NewHTTPBackend(client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPLoadTimeout}
	}
	return &HTTPBackend{client: client}
}

// Resolve fetches and compiles the descriptor. 5xx and 429 responses are
// transient, other non-200 responses are permanent.
func (b *HTTPBackend) Resolve(ctx context.Context, ref loadlib.ClassRef) (loadlib.Class, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(ref), nil)
	if err != nil {
		return nil, NewPermanentError("http", "request", err)
	}
	req.Header.Set("Accept", "application/yaml, application/json;q=0.9, */*;q=0.1")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, classify("http", "get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, NewPermanentError("http", "get", fmt.Errorf("%w: %v", ErrNotFound, statusErr))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, NewTransientError("http", "get", statusErr)
		default:
			return nil, NewPermanentError("http", "get", statusErr)
		}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDescriptorSize+1))
	if err != nil {
		return nil, classify("http", "read", err)
	}
	if len(data) > MaxDescriptorSize {
		return nil, NewPermanentError("http", "read", ErrDescriptorTooLarge)
	}
	return compileDescriptor("http", ref, data, nil)
}
