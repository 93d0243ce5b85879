package qjs

import (
	"fmt"
	"time"
)

// Kind classifies a corruption finding.
type Kind int

const (
	KindNone Kind = iota
	KindNullRef
	KindSentinel
	KindTaggedScalar
	KindOutOfRangeLow
	KindOutOfRangeHigh
	KindMisaligned
	KindBadPattern
	KindUseAfterFree
	KindBadClassID
	KindBadShapeHeader
	KindBadTransition
)

var kindNames = map[Kind]string{
	KindNone:           "none",
	KindNullRef:        "null_shape",
	KindSentinel:       "sentinel_value",
	KindTaggedScalar:   "tagged_value_as_pointer",
	KindOutOfRangeLow:  "out_of_range_low",
	KindOutOfRangeHigh: "out_of_range_high",
	KindMisaligned:     "misaligned_pointer",
	KindBadPattern:     "known_bad_pattern",
	KindUseAfterFree:   "use_after_free",
	KindBadClassID:     "invalid_class_id",
	KindBadShapeHeader: "invalid_shape_header",
	KindBadTransition:  "shape_changed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Severity string

const (
	SevWarning  Severity = "warning"
	SevCritical Severity = "critical"
)

// Report describes one corruption finding. Reports are advisory; a missed
// or wrong classification is the worst possible outcome here.
type Report struct {
	Kind           Kind
	ObjectAddr     uint64
	Value          uint64
	RangeLow       uint64
	RangeHigh      uint64
	Desc           string
	Severity       Severity
	Recommendation string
}

func (r *Report) String() string {
	return fmt.Sprintf("[%s/%s] obj=0x%x val=0x%x: %s", r.Kind, r.Severity, r.ObjectAddr, r.Value, r.Desc)
}

// ObjectState is the last snapshot of an object recorded by the detector.
type ObjectState struct {
	Shape   uint64
	ClassID uint16
	Seen    time.Time
}

// Stats summarizes detector bookkeeping.
type Stats struct {
	FreedTracked  int
	GoodTracked   int
	StatesTracked int
}

// Detector holds all classification state: the freed-shape set, the
// known-good set, and last-seen object states. Callers own the instance;
// there is no package-level mutable state.
type Detector struct {
	MinPtr uint64
	MaxPtr uint64

	freed map[uint64]struct{}
	good  map[uint64]struct{}
	seen  map[uint64]ObjectState
}

func NewDetector() *Detector {
	return &Detector{
		MinPtr: MinValidPtr,
		MaxPtr: MaxValidPtr,
		freed:  make(map[uint64]struct{}),
		good:   make(map[uint64]struct{}),
		seen:   make(map[uint64]ObjectState),
	}
}

func (d *Detector) report(kind Kind, objAddr, val uint64, desc string, rec string) *Report {
	return &Report{
		Kind:           kind,
		ObjectAddr:     objAddr,
		Value:          val,
		RangeLow:       d.MinPtr,
		RangeHigh:      d.MaxPtr,
		Desc:           desc,
		Severity:       SevCritical,
		Recommendation: rec,
	}
}

// CheckRef classifies a candidate shape reference. Returns nil when the
// value passes every check. First match wins.
func (d *Detector) CheckRef(val, objAddr uint64) *Report {
	if val == 0 {
		return d.report(KindNullRef, objAddr, val,
			"shape pointer is NULL (object not initialized or freed)",
			"check the object initialization path")
	}
	if val == 0xFFFFFFFFFFFFFFFF {
		return d.report(KindSentinel, objAddr, val,
			"shape is -1 (JS_TAG_OBJECT sentinel), memory corruption likely",
			"check for buffer overflow or use-after-free")
	}
	if LooksTagged(val) {
		return d.report(KindTaggedScalar, objAddr, val,
			fmt.Sprintf("shape looks like a tagged JSValue: %s", TagName(val)),
			"a JSValue was written over the shape field; check property assignment")
	}
	if val < d.MinPtr {
		return d.report(KindOutOfRangeLow, objAddr, val,
			fmt.Sprintf("shape is a small value (0x%x), likely a tagged pointer", val), "")
	}
	if val > d.MaxPtr {
		return d.report(KindOutOfRangeHigh, objAddr, val,
			"shape pointer above the userspace range (kernel space?)", "")
	}
	if val&(PtrAlign-1) != 0 {
		return d.report(KindMisaligned, objAddr, val,
			fmt.Sprintf("shape pointer not %d-byte aligned", PtrAlign), "")
	}
	for _, pat := range SuspiciousPatterns {
		if val == pat {
			return d.report(KindBadPattern, objAddr, val,
				fmt.Sprintf("shape matches a known corruption pattern: 0x%x", val), "")
		}
	}
	if _, ok := d.freed[val]; ok {
		return d.report(KindUseAfterFree, objAddr, val,
			"shape was freed but is still referenced (use-after-free)",
			"set a watchpoint on the shape field to catch the writer")
	}
	return nil
}

// CheckObject validates the class id before delegating to the shape
// reference check.
func (d *Detector) CheckObject(o *Object) *Report {
	if o == nil {
		return nil
	}
	if !o.ValidClass() {
		r := d.report(KindBadClassID, o.Addr, o.Shape,
			fmt.Sprintf("object has invalid class_id: %d", o.ClassID), "")
		r.RangeLow, r.RangeHigh = ClassIDMin, ClassIDMax
		r.Severity = SevWarning
		return r
	}
	return d.CheckRef(o.Shape, o.Addr)
}

// CheckShape validates the decoded shape header contents.
func (d *Detector) CheckShape(s *Shape) *Report {
	if s == nil || s.Valid() {
		return nil
	}
	desc := fmt.Sprintf("shape header inconsistent: props=%d/%d mask=0x%x",
		s.PropCount, s.PropSize, s.PropHashMask)
	r := d.report(KindBadShapeHeader, 0, s.Addr, desc, "")
	r.Severity = SevWarning
	return r
}

// CheckTransition classifies the new reference after a shape change.
// Legitimate transitions happen whenever a property is added; only a
// transition to an invalid or freed shape is reported.
func (d *Detector) CheckTransition(objAddr, oldRef, newRef uint64) *Report {
	r := d.CheckRef(newRef, objAddr)
	if r == nil {
		return nil
	}
	r.Kind = KindBadTransition
	r.Desc = fmt.Sprintf("shape changed from 0x%x to invalid: %s", oldRef, r.Desc)
	return r
}

// RegisterFreed records a freed shape address for use-after-free checks.
func (d *Detector) RegisterFreed(addr uint64) {
	d.freed[addr] = struct{}{}
	delete(d.good, addr)
}

// RegisterGood records a shape address seen alive.
func (d *Detector) RegisterGood(addr uint64) {
	d.good[addr] = struct{}{}
	delete(d.freed, addr)
}

func (d *Detector) Freed(addr uint64) bool {
	_, ok := d.freed[addr]
	return ok
}

// RecordState snapshots an object for later transition checks.
func (d *Detector) RecordState(o *Object) {
	d.seen[o.Addr] = ObjectState{Shape: o.Shape, ClassID: o.ClassID, Seen: time.Now()}
}

func (d *Detector) LastState(addr uint64) (ObjectState, bool) {
	st, ok := d.seen[addr]
	return st, ok
}

func (d *Detector) Stats() Stats {
	return Stats{
		FreedTracked:  len(d.freed),
		GoodTracked:   len(d.good),
		StatesTracked: len(d.seen),
	}
}
