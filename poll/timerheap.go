package poll

import (
	"time"
)

// TimeoutHandle identifies a deadline inserted into a [Poll], for
// cancellation. The zero value is never issued.
type TimeoutHandle uint64

// timerEntry is a single scheduled deadline.
type timerEntry struct {
	when   time.Time
	token  Token
	handle TimeoutHandle
}

// timerHeap is a min-heap of timers, ordered by deadline, then by insertion.
type timerHeap []timerEntry

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].handle < h[j].handle
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timerEntry))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = timerEntry{}
	*h = old[:n-1]
	return x
}
