package qjs

import (
	"fmt"
	"strings"
	"time"
)

type EventKind uint8

const (
	EventCreated EventKind = iota
	EventRefChanged
	EventPropertyAdded
	EventFreed
)

var eventNames = map[EventKind]string{
	EventCreated:       "created",
	EventRefChanged:    "ref_changed",
	EventPropertyAdded: "property_added",
	EventFreed:         "freed",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one recorded lifecycle entry for a tracked address.
type Event struct {
	Time time.Time
	Kind EventKind
	Addr uint64
	Ref  uint64
	Note string
}

func (e *Event) String() string {
	s := fmt.Sprintf("%s %s addr=0x%x ref=0x%x", e.Time.Format("15:04:05.000"), e.Kind, e.Addr, e.Ref)
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// Tracker keeps an ordered event history per address, used to answer
// "what changed and when" next to a corruption report. Single writer,
// in-memory only.
type Tracker struct {
	events map[uint64][]Event
	allocs int
	frees  int
}

func NewTracker() *Tracker {
	return &Tracker{events: make(map[uint64][]Event)}
}

func (t *Tracker) record(kind EventKind, addr, ref uint64, note string) {
	t.events[addr] = append(t.events[addr], Event{
		Time: time.Now(),
		Kind: kind,
		Addr: addr,
		Ref:  ref,
		Note: note,
	})
}

func (t *Tracker) Created(addr, ref uint64) {
	t.allocs++
	t.record(EventCreated, addr, ref, "")
}

func (t *Tracker) RefChanged(addr, oldRef, newRef uint64) {
	t.record(EventRefChanged, addr, newRef, fmt.Sprintf("was 0x%x", oldRef))
}

func (t *Tracker) PropertyAdded(addr, ref uint64) {
	t.record(EventPropertyAdded, addr, ref, "")
}

func (t *Tracker) Freed(addr uint64) {
	t.frees++
	t.record(EventFreed, addr, 0, "")
}

// History returns the recorded events for addr in insertion order. The
// returned slice is a copy.
func (t *Tracker) History(addr uint64) []Event {
	evs := t.events[addr]
	if len(evs) == 0 {
		return nil
	}
	out := make([]Event, len(evs))
	copy(out, evs)
	return out
}

func (t *Tracker) Tracked(addr uint64) bool {
	return len(t.events[addr]) > 0
}

// Explain renders the history of addr as report context.
func (t *Tracker) Explain(addr uint64) string {
	evs := t.events[addr]
	if len(evs) == 0 {
		return fmt.Sprintf("no history for 0x%x", addr)
	}
	lines := make([]string, 0, len(evs)+1)
	lines = append(lines, fmt.Sprintf("history for 0x%x (%d events):", addr, len(evs)))
	for i := range evs {
		lines = append(lines, "  "+evs[i].String())
	}
	return strings.Join(lines, "\n")
}

func (t *Tracker) Counts() (allocs, frees, tracked int) {
	return t.allocs, t.frees, len(t.events)
}
