//go:build !windows

package loadcli

import (
	"context"
	"fmt"
	"net"
)

// SocketURI returns the URI of a daemon serving on the local socket path.
func SocketURI(path string) string {
	return SchemeUnix + "://" + path
}

func dialSocket(ctx context.Context, uri *DaemonURI) (net.Conn, error) {
	if uri.Scheme != SchemeUnix {
		return nil, fmt.Errorf("%w: %s is not available on this platform", ErrUnsupportedScheme, uri.Scheme)
	}
	var d net.Dialer
	return d.DialContext(ctx, "unix", uri.Address)
}
