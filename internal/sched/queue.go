package sched

import (
	"container/heap"
	"time"

	"github.com/Melokeo/Timetable4Inky/internal/task"
)

type eventKind int

const (
	evPeriodic eventKind = iota
	evTaskStart
	evTaskEnd
	evPanelShift
	evUploadTick
	evRollover
)

func (k eventKind) String() string {
	switch k {
	case evPeriodic:
		return "periodic"
	case evTaskStart:
		return "task-start"
	case evTaskEnd:
		return "task-end"
	case evPanelShift:
		return "panel-shift"
	case evUploadTick:
		return "upload-tick"
	case evRollover:
		return "rollover"
	}
	return "unknown"
}

// event is one scheduled wakeup. Task is set for task boundaries only.
type event struct {
	at   time.Time
	kind eventKind
	task *task.Task
}

type eventHeap []*event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)         { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

// eventQueue orders the day's wakeups by time. Not safe for concurrent
// use; the daemon loop owns it.
type eventQueue struct {
	h eventHeap
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.h)
	return q
}

func (q *eventQueue) push(ev *event) { heap.Push(&q.h, ev) }

func (q *eventQueue) len() int { return q.h.Len() }

// peek returns the earliest event without removing it, or nil.
func (q *eventQueue) peek() *event {
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0]
}

// popDue removes and returns every event at or before now, in order.
func (q *eventQueue) popDue(now time.Time) []*event {
	var due []*event
	for q.h.Len() > 0 && !q.h[0].at.After(now) {
		due = append(due, heap.Pop(&q.h).(*event))
	}
	return due
}

func (q *eventQueue) clear() { q.h = q.h[:0] }
