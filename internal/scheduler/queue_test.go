package scheduler

import (
	"testing"
	"time"
)

func TestQueueOrdering(t *testing.T) {
	q := NewQueue(10)
	q.Rebuild([]Entry{
		{ScheduleID: 1, PlannedTime: day(0, 12, 0, 0)},
		{ScheduleID: 2, PlannedTime: day(0, 9, 0, 0)},
		{ScheduleID: 3, PlannedTime: day(0, 10, 30, 0)},
	})

	got := q.Snapshot()
	want := []int{2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ScheduleID != id {
			t.Fatalf("position %d: schedule %d, want %d", i, got[i].ScheduleID, id)
		}
	}
}

func TestQueueTieBreaksByInsertionOrder(t *testing.T) {
	q := NewQueue(10)
	at := day(0, 9, 0, 0)
	q.Rebuild([]Entry{
		{ScheduleID: 5, PlannedTime: at},
		{ScheduleID: 2, PlannedTime: at},
		{ScheduleID: 9, PlannedTime: at},
	})

	got := q.Snapshot()
	for i, id := range []int{5, 2, 9} {
		if got[i].ScheduleID != id {
			t.Fatalf("position %d: schedule %d, want %d", i, got[i].ScheduleID, id)
		}
	}
}

func TestQueueCapacity(t *testing.T) {
	q := NewQueue(0) // default size
	entries := make([]Entry, 15)
	for i := range entries {
		entries[i] = Entry{ScheduleID: i + 1, PlannedTime: day(0, 9, i, 0)}
	}
	q.Rebuild(entries)

	if q.Len() != DefaultQueueSize {
		t.Fatalf("len = %d, want %d", q.Len(), DefaultQueueSize)
	}
	// the soonest entries survive the cap
	got := q.Snapshot()
	for i := 0; i < DefaultQueueSize; i++ {
		if got[i].ScheduleID != i+1 {
			t.Fatalf("position %d: schedule %d, want %d", i, got[i].ScheduleID, i+1)
		}
	}
}

func TestQueueDropPast(t *testing.T) {
	q := NewQueue(10)
	q.Rebuild([]Entry{
		{ScheduleID: 1, PlannedTime: day(0, 8, 0, 0)},
		{ScheduleID: 2, PlannedTime: day(0, 9, 0, 0)},
		{ScheduleID: 3, PlannedTime: day(0, 10, 0, 0)},
	})

	stale := q.DropPast(day(0, 9, 0, 0))
	if len(stale) != 1 || stale[0].ScheduleID != 1 {
		t.Fatalf("stale = %+v, want schedule 1 only", stale)
	}
	// an entry planned exactly at now is not past
	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
}

func TestQueueRebuildReplaces(t *testing.T) {
	q := NewQueue(10)
	q.Rebuild([]Entry{{ScheduleID: 1, PlannedTime: day(0, 8, 0, 0)}})
	q.Rebuild([]Entry{{ScheduleID: 2, PlannedTime: day(0, 9, 0, 0)}})

	got := q.Snapshot()
	if len(got) != 1 || got[0].ScheduleID != 2 {
		t.Fatalf("rebuild must replace contents, got %+v", got)
	}
}

func TestQueueSnapshotIsCopy(t *testing.T) {
	q := NewQueue(10)
	q.Rebuild([]Entry{{ScheduleID: 1, PlannedTime: day(0, 8, 0, 0)}})

	snap := q.Snapshot()
	snap[0].PlannedTime = day(0, 23, 0, 0)
	if got := q.Snapshot(); !got[0].PlannedTime.Equal(day(0, 8, 0, 0)) {
		t.Fatal("snapshot mutation leaked into the queue")
	}

	var zero time.Time
	if got := q.Snapshot(); got[0].PlannedTime.Equal(zero) {
		t.Fatal("queue entry lost its planned time")
	}
}
