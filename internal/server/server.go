// Package server exposes a scheduler over JSON-RPC 2.0: HTTP POST through
// a jhttp bridge and WebSocket connections with push notifications. The
// same listener serves Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/pkg/logger"
)

const (
	shutdownTimeout = 5 * time.Second
	// pushWriteTimeout bounds one WebSocket write; a client that stops
	// reading is disconnected instead of blocking the notifier.
	pushWriteTimeout = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	// Listen is the TCP address. Used when Socket is empty or unusable.
	Listen string
	// Socket is a unix socket path, or a named pipe on Windows, tried
	// before Listen.
	Socket string
	// Gatherer backs the metrics endpoint. Nil disables it.
	Gatherer prometheus.Gatherer
}

// Server serves the RPC and metrics endpoints.
type Server struct {
	opts     Options
	rpc      *RPCServer
	notifier *RPCNotifier
	log      logger.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	socket   string
}

// NewServer creates a Server. Start it with Start.
func NewServer(opts Options, rpc *RPCServer, notifier *RPCNotifier, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNopLogger()
	}
	if notifier == nil {
		notifier = NewRPCNotifier(l)
	}
	return &Server{opts: opts, rpc: rpc, notifier: notifier, log: l}
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(common.RPCPath, requireToken(s.rpc.secret, s.rpc.bridge))
	mux.Handle(common.WSPath, requireToken(s.rpc.secret, http.HandlerFunc(s.handleWebSocket)))
	if s.opts.Gatherer != nil {
		mux.Handle(common.MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// handleWebSocket serves one JSON-RPC session and registers it for push
// notifications until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Warning("WebSocket accept failed: %v", err)
		return
	}
	ch := &wsChannel{conn: conn, ctx: r.Context(), writeTimeout: pushWriteTimeout}
	srv := jrpc2.NewServer(s.rpc.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	if err := srv.Wait(); err != nil && !isClosedErr(err) {
		s.log.Info("WebSocket session ended: %v", err)
	}
}

func isClosedErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) {
		return true
	}
	switch cws.CloseStatus(err) {
	case cws.StatusNormalClosure, cws.StatusGoingAway:
		return true
	}
	return false
}

// Addr returns the bound address once Start has created the listener.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	l, err := s.createListener()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.listener = l
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.ToStdLogger(s.log),
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info("RPC listening on %s", l.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()
	select {
	case <-ctx.Done():
		s.Shutdown()
		err = <-errCh
	case err = <-errCh:
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, ends WebSocket sessions and removes
// the socket file.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	socket := s.socket
	s.socket = ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.notifier.StopAll()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		s.log.Error("Error shutting down RPC server: %v", err)
	}
	if socket != "" {
		if rerr := os.Remove(socket); rerr != nil && !os.IsNotExist(rerr) {
			s.log.Error("Error removing socket file: %v", rerr)
		}
	}
	return err
}
