//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/asyncload/common"
)

// pipeSecurityDescriptor grants access to SYSTEM, Administrators and the
// user running the daemon only.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

// createListener treats Socket as a named pipe and falls back to TCP.
func (s *Server) createListener() (net.Listener, error) {
	if s.opts.Socket != "" {
		l, err := winio.ListenPipe(common.PipePath(s.opts.Socket), &winio.PipeConfig{
			SecurityDescriptor: pipeSecurityDescriptor,
		})
		if err == nil {
			return l, nil
		}
		if s.opts.Listen == "" {
			return nil, fmt.Errorf("error listening on pipe %s: %w", s.opts.Socket, err)
		}
		s.log.Warning("Named pipe creation failed: %v", err)
		s.log.Warning("Falling back to TCP (firewall prompts may occur)")
	}
	l, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("error listening: %w", err)
	}
	return l, nil
}
