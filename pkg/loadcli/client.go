// Package loadcli is the client side of the asyncload daemon's JSON-RPC
// interface.
package loadcli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/warpdl/asyncload/common"
)

// ErrNoNotifications is returned by Wait on clients without a push channel.
var ErrNoNotifications = errors.New("client connected over HTTP does not receive notifications")

// Options configures a connection.
type Options struct {
	// URI selects the daemon; see ParseDaemonURI.
	URI string
	// Token is the bearer token.
	Token string
	// DialTimeout bounds connection setup. Defaults to 5s.
	DialTimeout time.Duration
}

// Client talks to the daemon.
type Client struct {
	rpc  *jrpc2.Client
	d    *dispatcher
	push bool
}

// httpClient returns a client that reaches the daemon at uri and adds the
// bearer token to every request.
func httpClient(uri *DaemonURI, token string) *http.Client {
	tr := &http.Transport{}
	if uri.Scheme != SchemeTCP {
		tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialSocket(ctx, uri)
		}
	}
	return &http.Client{Transport: &authTransport{token: token, base: tr}}
}

type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

func baseURL(uri *DaemonURI, scheme string) string {
	if uri.Scheme != SchemeTCP {
		return scheme + "://local"
	}
	return scheme + "://" + uri.Address
}

// Dial opens a WebSocket session. Notifications for the session are
// delivered to handlers added with OnEvent and to Wait.
func Dial(ctx context.Context, opts *Options) (*Client, error) {
	uri, err := ParseDaemonURI(opts.URI)
	if err != nil {
		return nil, err
	}
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, resp, err := cws.Dial(dctx, baseURL(uri, "ws")+common.WSPath, &cws.DialOptions{
		HTTPClient: httpClient(uri, opts.Token),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("error connecting to daemon at %s: unauthorized", uri)
		}
		return nil, fmt.Errorf("error connecting to daemon at %s: %w", uri, err)
	}
	conn.SetReadLimit(-1)
	return newClient(&wsChannel{conn: conn, ctx: context.Background()}, true), nil
}

// DialHTTP returns a client that sends each call as an HTTP POST. It
// receives no notifications.
func DialHTTP(opts *Options) (*Client, error) {
	uri, err := ParseDaemonURI(opts.URI)
	if err != nil {
		return nil, err
	}
	ch := jhttp.NewChannel(baseURL(uri, "http")+common.RPCPath, &jhttp.ChannelOptions{
		Client: httpClient(uri, opts.Token),
	})
	return newClient(ch, false), nil
}

func newClient(ch channel.Channel, push bool) *Client {
	d := newDispatcher()
	var copts *jrpc2.ClientOptions
	if push {
		copts = &jrpc2.ClientOptions{OnNotify: d.onNotify}
	}
	return &Client{rpc: jrpc2.NewClient(ch, copts), d: d, push: push}
}

// OnEvent registers h for every notification.
func (c *Client) OnEvent(h Handler) {
	c.d.addHandler(h)
}

// Wait blocks until the request id completes, fails or is cancelled.
func (c *Client) Wait(ctx context.Context, id string) (*Event, error) {
	if !c.push {
		return nil, ErrNoNotifications
	}
	return c.d.wait(ctx, id)
}

// Close ends the session.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// wsChannel adapts a client WebSocket connection to channel.Channel.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
