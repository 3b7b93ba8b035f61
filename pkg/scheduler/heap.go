package scheduler

import "container/heap"

// eventHeap is a binary min-heap of *Event ordered by NextQueue, using the
// standard library's container/heap (the idiomatic Go way to express a
// binary heap; none of the reference corpus carries a third-party heap
// implementation worth preferring over it — see DESIGN.md).
type eventHeap []*Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	var d int
	nextQueueDiff(h[i], h[j], &d)
	return d < 0
}

func nextQueueDiff(a, b *Event, out *int) {
	// local helper kept separate so heap comparisons read like the spec's
	// "parent > child" sift description
	*out = cmpTime(a.NextQueue, b.NextQueue)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].qid = i + 1
	h[j].qid = j + 1
}

func (h *eventHeap) Push(x interface{}) {
	e := x.(*Event)
	e.qid = len(*h) + 1
	*h = append(*h, e)
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.qid = 0
	*h = old[:n-1]
	return e
}
