package asyncio

import "time"

// timerHandle is one scheduled wakeup: a deadline, the cancellation token id
// and the handle to resume. Cancelled entries stay in the heap and are
// discarded when they surface.
type timerHandle struct {
	when      time.Time
	id        uint64
	h         Handle
	cancelled bool
}

// a heap for sorted deadlines, ties broken by id so that timers scheduled
// for the same instant fire in insertion order
type timerHeap []*timerHandle

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerHandle)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil // avoid memory leak
	*h = old[0 : n-1]
	return x
}
