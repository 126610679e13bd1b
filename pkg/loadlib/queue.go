package loadlib

import "sort"

// pendingQueue holds requests waiting for an active slot, kept sorted by
// priority (descending) and then submission order (ascending).
type pendingQueue struct {
	items []*LoadRequest
}

// Len returns the number of waiting requests.
func (q *pendingQueue) Len() int {
	return len(q.items)
}

// Push inserts req at its sorted position: after every request that sorts
// ahead of it, so equal priorities stay in submission order.
func (q *pendingQueue) Push(req *LoadRequest) {
	idx := sort.Search(len(q.items), func(i int) bool {
		return req.before(q.items[i])
	})
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = req
}

// Pop removes and returns the head of the queue, or nil when empty.
func (q *pendingQueue) Pop() *LoadRequest {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return head
}

// Remove deletes the request with the given id, preserving the order of
// the rest. Returns the removed request or nil.
func (q *pendingQueue) Remove(id RequestID) *LoadRequest {
	for i, req := range q.items {
		if req.ID == id {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return req
		}
	}
	return nil
}

// Find returns the waiting request with the given id, or nil.
func (q *pendingQueue) Find(id RequestID) *LoadRequest {
	for _, req := range q.items {
		if req.ID == id {
			return req
		}
	}
	return nil
}

// Items returns the queue contents in order. The slice is shared; do not modify it.
func (q *pendingQueue) Items() []*LoadRequest {
	return q.items
}

// Reset drops every waiting request.
func (q *pendingQueue) Reset() {
	q.items = nil
}
