//go:build windows

package loadcli

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/asyncload/common"
)

// SocketURI returns the URI of a daemon serving on the named pipe path.
func SocketURI(path string) string {
	return SchemePipe + "://" + common.PipeName(path)
}

func dialSocket(ctx context.Context, uri *DaemonURI) (net.Conn, error) {
	if uri.Scheme != SchemePipe {
		return nil, fmt.Errorf("%w: %s is not available on this platform", ErrUnsupportedScheme, uri.Scheme)
	}
	return winio.DialPipeContext(ctx, common.PipePath(uri.Address))
}
