package server

import (
	"context"
	"errors"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/internal/view"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"github.com/warpdl/asyncload/pkg/logger"
)

// RPCNotifier keeps the set of connected WebSocket jrpc2 servers and
// pushes notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger
}

// NewRPCNotifier creates an empty notifier. l may be nil.
func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     l,
	}
}

// Register adds a server to the broadcast set.
func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.servers[srv] = struct{}{}
}

// Unregister removes a server from the broadcast set.
func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.servers, srv)
}

// Broadcast sends a push notification to every registered server.
// Servers that fail to receive are dropped.
func (n *RPCNotifier) Broadcast(method string, params any) {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	var failed []*jrpc2.Server
	for _, srv := range servers {
		if err := srv.Notify(context.Background(), method, params); err != nil {
			n.log.Warning("RPC push %s failed: %v", method, err)
			failed = append(failed, srv)
		}
	}
	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
}

// StopAll stops every registered server, closing its connection.
func (n *RPCNotifier) StopAll() {
	n.mu.Lock()
	servers := n.servers
	n.servers = make(map[*jrpc2.Server]struct{})
	n.mu.Unlock()
	for srv := range servers {
		srv.Stop()
	}
}

// Count returns the number of registered servers.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

// Handlers returns scheduler event hooks that broadcast load.completed,
// load.failed and load.cancelled. next, if non-nil, is called first for
// every event.
func (n *RPCNotifier) Handlers(next *loadlib.Handlers) *loadlib.Handlers {
	if next == nil {
		next = &loadlib.Handlers{}
	}
	return &loadlib.Handlers{
		AdmitHandler: next.AdmitHandler,
		CompleteHandler: func(id loadlib.RequestID, ref loadlib.ClassRef, inst loadlib.Instance) {
			if next.CompleteHandler != nil {
				next.CompleteHandler(id, ref, inst)
			}
			n.Broadcast(common.NotifyLoadCompleted, &common.LoadNotification{
				ID:      id.String(),
				Ref:     ref.String(),
				View:    viewInfo(inst),
				Preload: inst == nil,
			})
		},
		FailHandler: func(id loadlib.RequestID, ref loadlib.ClassRef, err error) {
			if next.FailHandler != nil {
				next.FailHandler(id, ref, err)
			}
			n.Broadcast(common.NotifyLoadFailed, &common.LoadNotification{
				ID:    id.String(),
				Ref:   ref.String(),
				Error: failureMessage(err),
			})
		},
		CancelHandler: func(id loadlib.RequestID, ref loadlib.ClassRef) {
			if next.CancelHandler != nil {
				next.CancelHandler(id, ref)
			}
			n.Broadcast(common.NotifyLoadCancelled, &common.LoadNotification{
				ID:  id.String(),
				Ref: ref.String(),
			})
		},
	}
}

func viewInfo(inst loadlib.Instance) *common.ViewInfo {
	v, ok := inst.(*view.View)
	if !ok || v == nil {
		return nil
	}
	return &common.ViewInfo{
		ID:        v.ID,
		ClassName: v.ClassName,
		Title:     v.Title,
		ZOrder:    v.ZOrder,
		Attrs:     v.Attributes,
	}
}

// failureMessage renders err without the ref prefix; the notification
// carries the ref separately.
func failureMessage(err error) string {
	var le *loadlib.LoadError
	if errors.As(err, &le) && le.Kind != nil {
		if le.Cause != nil {
			return le.Kind.Error() + ": " + le.Cause.Error()
		}
		return le.Kind.Error()
	}
	return err.Error()
}
