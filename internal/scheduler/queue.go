package scheduler

import (
	"container/heap"
	"time"
)

// entry is one pending firing in the timer queue.
type entry struct {
	uid int64
	at  time.Time
	seq uint64
	pos int
}

// timerQueue orders pending firings by due instant, ties broken by
// insertion order. It is owned by the Scheduler; callers never see the
// queue and the reminder index out of sync.
type timerQueue struct {
	entries []*entry
	seq     uint64
}

func (q *timerQueue) push(uid int64, at time.Time) *entry {
	q.seq++
	e := &entry{uid: uid, at: at, seq: q.seq}
	heap.Push((*entryHeap)(q), e)
	return e
}

func (q *timerQueue) peek() (*entry, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

func (q *timerQueue) pop() *entry {
	return heap.Pop((*entryHeap)(q)).(*entry)
}

func (q *timerQueue) len() int { return len(q.entries) }

// entryHeap adapts timerQueue to container/heap.
type entryHeap timerQueue

func (h *entryHeap) Len() int { return len(h.entries) }

func (h *entryHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.at.Equal(b.at) {
		return a.seq < b.seq
	}
	return a.at.Before(b.at)
}

func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].pos = i
	h.entries[j].pos = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.pos = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *entryHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.pos = -1
	h.entries = old[:n-1]
	return e
}
