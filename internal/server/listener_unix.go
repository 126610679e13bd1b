//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"
)

// createListener tries the unix socket first and falls back to TCP.
func (s *Server) createListener() (net.Listener, error) {
	if s.opts.Socket != "" {
		_ = os.Remove(s.opts.Socket)
		l, err := net.Listen("unix", s.opts.Socket)
		if err == nil {
			_ = os.Chmod(s.opts.Socket, 0600)
			s.socket = s.opts.Socket
			return l, nil
		}
		if s.opts.Listen == "" {
			return nil, fmt.Errorf("error listening on %s: %w", s.opts.Socket, err)
		}
		s.log.Warning("Error occurred while using unix socket: %v", err)
		s.log.Warning("Trying to use tcp socket")
	}
	l, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("error listening: %w", err)
	}
	return l, nil
}
