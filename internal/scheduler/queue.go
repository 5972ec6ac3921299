package scheduler

import (
	"container/heap"
	"sort"
	"sync"
	"time"
)

// DefaultQueueSize is how many upcoming doses the queue keeps across all
// schedules.
const DefaultQueueSize = 10

// Entry is one upcoming dose. Transient, never persisted: the queue is
// always rebuildable from schedules, dose events and "now".
type Entry struct {
	ScheduleID   int       `json:"schedule_id"`
	TankID       int       `json:"tank_id"`
	ProductID    int       `json:"product_id"`
	ProductName  string    `json:"product_name"`
	Amount       float64   `json:"amount"`
	CurrentAvail float64   `json:"current_avail"`
	PlannedTime  time.Time `json:"planned_time"`

	seq int
}

type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].PlannedTime.Equal(h[j].PlannedTime) {
		return h[i].seq < h[j].seq
	}
	return h[i].PlannedTime.Before(h[j].PlannedTime)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue is the shared min-heap of upcoming doses, ordered by planned time
// with ties broken by insertion order. The mutex is held only for heap
// mutation, never across external calls.
type Queue struct {
	mu      sync.Mutex
	entries entryHeap
	size    int
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{size: size}
}

// Rebuild replaces the queue contents with the soonest entries of the given
// set, capped at the queue size. Insertion order of the input breaks ties.
func (q *Queue) Rebuild(entries []Entry) {
	es := make([]Entry, len(entries))
	copy(es, entries)
	for i := range es {
		es[i].seq = i
	}
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].PlannedTime.Equal(es[j].PlannedTime) {
			return es[i].seq < es[j].seq
		}
		return es[i].PlannedTime.Before(es[j].PlannedTime)
	})
	if len(es) > q.size {
		es = es[:q.size]
	}

	q.mu.Lock()
	q.entries = es
	heap.Init(&q.entries)
	q.mu.Unlock()
}

// DropPast removes and returns entries whose planned time already passed.
func (q *Queue) DropPast(now time.Time) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var stale []Entry
	for q.entries.Len() > 0 && q.entries[0].PlannedTime.Before(now) {
		stale = append(stale, heap.Pop(&q.entries).(Entry))
	}
	return stale
}

// Snapshot returns the queued entries in firing order.
func (q *Queue) Snapshot() []Entry {
	q.mu.Lock()
	es := make([]Entry, len(q.entries))
	copy(es, q.entries)
	q.mu.Unlock()

	sort.SliceStable(es, func(i, j int) bool {
		if es[i].PlannedTime.Equal(es[j].PlannedTime) {
			return es[i].seq < es[j].seq
		}
		return es[i].PlannedTime.Before(es[j].PlannedTime)
	})
	return es
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
