package qjs

import (
	"strings"
	"testing"
)

func TestTrackerHistory(t *testing.T) {
	tr := NewTracker()
	tr.Created(0x5000, 0x2000)
	tr.PropertyAdded(0x5000, 0x2000)
	tr.RefChanged(0x5000, 0x2000, 0x3000)
	tr.Freed(0x5000)

	evs := tr.History(0x5000)
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	kinds := []EventKind{EventCreated, EventPropertyAdded, EventRefChanged, EventFreed}
	for i, k := range kinds {
		if evs[i].Kind != k {
			t.Fatalf("event %d: got %s, want %s", i, evs[i].Kind, k)
		}
	}
	assert(t, evs[2].Ref != 0x3000, "ref change should record the new value")
	assert(t, !strings.Contains(evs[2].Note, "0x2000"), "ref change should note the old value")

	// history is ordered by insertion
	for i := 1; i < len(evs); i++ {
		assert(t, evs[i].Time.Before(evs[i-1].Time), "events out of order")
	}
}

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker()
	tr.Created(0x5000, 0x2000)
	tr.Created(0x6000, 0x2000)
	tr.Freed(0x5000)
	allocs, frees, tracked := tr.Counts()
	assert(t, allocs != 2, "alloc count wrong")
	assert(t, frees != 1, "free count wrong")
	assert(t, tracked != 2, "tracked count wrong")
}

func TestTrackerExplain(t *testing.T) {
	tr := NewTracker()
	assert(t, !strings.Contains(tr.Explain(0x5000), "no history"), "empty history should say so")
	assert(t, tr.Tracked(0x5000), "untracked address reported as tracked")

	tr.Created(0x5000, 0x2000)
	out := tr.Explain(0x5000)
	assert(t, !strings.Contains(out, "0x5000"), "explain missing address")
	assert(t, !strings.Contains(out, "created"), "explain missing event kind")
	assert(t, !tr.Tracked(0x5000), "tracked address not reported")
}

func TestTrackerHistoryCopy(t *testing.T) {
	tr := NewTracker()
	tr.Created(0x5000, 0x2000)
	evs := tr.History(0x5000)
	evs[0].Ref = 0xdead
	assert(t, tr.History(0x5000)[0].Ref == 0xdead, "History should return a copy")
}
