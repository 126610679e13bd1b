package loadcli

import (
	"context"
	"sync"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/asyncload/common"
)

// finishedBacklog bounds the notifications kept for ids nobody waits on yet.
const finishedBacklog = 256

// Event is a push notification received from the daemon.
type Event struct {
	Method string
	common.LoadNotification
}

// Failed reports whether the event ends a request with an error.
func (e *Event) Failed() bool {
	return e.Method == common.NotifyLoadFailed
}

// Handler receives every push notification.
type Handler func(*Event)

// dispatcher routes notifications to handlers and to waiters keyed by
// request id. Notifications that arrive before anyone waits are kept.
type dispatcher struct {
	mu       sync.Mutex
	handlers []Handler
	waiters  map[string][]chan *Event
	finished map[string]*Event
	order    []string
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		waiters:  make(map[string][]chan *Event),
		finished: make(map[string]*Event),
	}
}

func (d *dispatcher) addHandler(h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

func (d *dispatcher) onNotify(req *jrpc2.Request) {
	var note common.LoadNotification
	if err := req.UnmarshalParams(&note); err != nil {
		return
	}
	d.deliver(req.Method(), note)
}

func (d *dispatcher) deliver(method string, note common.LoadNotification) {
	switch method {
	case common.NotifyLoadCompleted, common.NotifyLoadFailed, common.NotifyLoadCancelled:
	default:
		return
	}
	ev := &Event{Method: method, LoadNotification: note}
	d.mu.Lock()
	handlers := append([]Handler(nil), d.handlers...)
	waiters := d.waiters[ev.ID]
	delete(d.waiters, ev.ID)
	if len(waiters) == 0 {
		d.finished[ev.ID] = ev
		d.order = append(d.order, ev.ID)
		if len(d.order) > finishedBacklog {
			delete(d.finished, d.order[0])
			d.order = d.order[1:]
		}
	}
	d.mu.Unlock()
	for _, w := range waiters {
		w <- ev
	}
	for _, h := range handlers {
		h(ev)
	}
}

func (d *dispatcher) wait(ctx context.Context, id string) (*Event, error) {
	d.mu.Lock()
	if ev, ok := d.finished[id]; ok {
		delete(d.finished, id)
		d.mu.Unlock()
		return ev, nil
	}
	ch := make(chan *Event, 1)
	d.waiters[id] = append(d.waiters[id], ch)
	d.mu.Unlock()
	select {
	case ev := <-ch:
		return ev, nil
	case <-ctx.Done():
		d.mu.Lock()
		ws := d.waiters[id]
		for i, w := range ws {
			if w == ch {
				d.waiters[id] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(d.waiters[id]) == 0 {
			delete(d.waiters, id)
		}
		d.mu.Unlock()
		return nil, ctx.Err()
	}
}
