package timer

import (
	"container/heap"

	"github.com/warpdl/asyncload/pkg/loadlib"
)

// timerHeap implements container/heap.Interface for timer entries,
// sorted by due time (earliest first), then by handle.
type timerHeap []*entry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].handle < h[j].handle
	}
	return h[i].at.Before(h[j].at)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

func heapPush(h *timerHeap, e *entry) {
	heap.Push(h, e)
}

// heapPop removes and returns the earliest entry. Panics if the heap is empty.
func heapPop(h *timerHeap) *entry {
	return heap.Pop(h).(*entry)
}

// heapRemove removes the entry with the given handle.
// Returns true if it was found.
func heapRemove(h *timerHeap, handle loadlib.TimerHandle) bool {
	for i, e := range *h {
		if e.handle == handle {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
