package inspect

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

// context offsets captured around an inspected object
var contextOffsets = []int64{-64, -32, -16, 0, 16, 32, 64}

// Result bundles everything learned about one object address.
type Result struct {
	Object *qjs.Object
	Shape  *qjs.Shape
	Report *qjs.Report

	// raw 16-byte windows keyed by offset from the object
	Context map[int64][]byte
	Nearby  []*qjs.Object
}

func (r *Result) Corrupted() bool { return r.Report != nil }

func (r *Result) Summary() string {
	o := r.Object
	lines := []string{
		fmt.Sprintf("Object at 0x%x:", o.Addr),
		fmt.Sprintf("  class_id: %d", o.ClassID),
		fmt.Sprintf("  shape: 0x%x (%s)", o.Shape, o.ShapeStatus()),
		fmt.Sprintf("  prop: 0x%x", o.Prop),
	}
	if r.Shape != nil {
		lines = append(lines,
			fmt.Sprintf("  Shape: 0x%x", r.Shape.Addr),
			fmt.Sprintf("    prop_count: %d", r.Shape.PropCount),
			fmt.Sprintf("    prop_size: %d", r.Shape.PropSize),
			fmt.Sprintf("    proto: 0x%x", r.Shape.Proto))
	}
	if r.Report != nil {
		lines = append(lines,
			fmt.Sprintf("  CORRUPTION: %s", r.Report.Kind),
			fmt.Sprintf("    %s", r.Report.Desc))
	}
	return strings.Join(lines, "\n")
}

// Inspector decodes and classifies objects out of a target. The detector
// and tracker are owned by the caller and shared across inspections so
// freed-set state survives.
type Inspector struct {
	IO       models.MemIO
	Detector *qjs.Detector
	Tracker  *qjs.Tracker
	Config   *models.Config
}

func New(io models.MemIO, conf *models.Config) *Inspector {
	if conf == nil {
		conf = &models.Config{}
	}
	conf.Init()
	d := qjs.NewDetector()
	if conf.MinPtr != 0 {
		d.MinPtr = conf.MinPtr
	}
	if conf.MaxPtr != 0 {
		d.MaxPtr = conf.MaxPtr
	}
	return &Inspector{IO: io, Detector: d, Config: conf}
}

// Inspect decodes the object at addr, follows a healthy shape reference,
// classifies, and optionally captures surrounding memory and neighbors.
func (i *Inspector) Inspect(addr uint64, withContext bool) (*Result, error) {
	obj, err := qjs.ReadObject(i.IO, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "inspecting 0x%x", addr)
	}
	res := &Result{Object: obj}
	res.Report = i.Detector.CheckObject(obj)

	if res.Report == nil || res.Report.Kind == qjs.KindBadClassID {
		// shape ref may still be readable when only the class id is off
		if qjs.IsValidPtr(obj.Shape) && !i.Detector.Freed(obj.Shape) {
			if shape, err := qjs.ReadShape(i.IO, obj.Shape); err == nil {
				res.Shape = shape
				if res.Report == nil {
					res.Report = i.Detector.CheckShape(shape)
				}
			}
		}
	}

	if withContext {
		res.Context = make(map[int64][]byte)
		for _, off := range contextOffsets {
			ctxAddr := addr + uint64(off)
			if off < 0 && uint64(-off) > addr {
				continue
			}
			if ctxAddr < qjs.MinValidPtr {
				continue
			}
			buf := make([]byte, 16)
			if err := i.IO.MemReadInto(buf, ctxAddr); err == nil {
				res.Context[off] = buf
			}
		}
		res.Nearby = i.Nearby(addr, i.Config.ContextRadius, 5)
	}
	return res, nil
}

// Nearby probes 8-byte-aligned addresses around addr for headers that
// decode as plausible objects.
func (i *Inspector) Nearby(addr uint64, radius int64, max int) []*qjs.Object {
	var found []*qjs.Object
	for off := -radius; off <= radius; off += 8 {
		if off == 0 {
			continue
		}
		if off < 0 && uint64(-off) > addr {
			continue
		}
		test := addr + uint64(off)
		if test < qjs.MinValidPtr {
			continue
		}
		obj, err := qjs.ReadObject(i.IO, test)
		if err != nil {
			continue
		}
		if obj.ValidClass() && qjs.IsValidPtr(obj.Shape) {
			found = append(found, obj)
			if len(found) >= max {
				break
			}
		}
	}
	return found
}

// ScanObjects sweeps every mapped segment for headers that decode as
// plausible objects and hands them to fn. fn returns false to stop.
func ScanObjects(sim *models.MemSim, fn func(o *qjs.Object) bool) {
	for _, seg := range sim.Segments() {
		if seg.Prot&models.ProtRead == 0 || seg.Prot&models.ProtExec != 0 {
			continue
		}
		if seg.Size < qjs.ObjectSize {
			continue
		}
		for off := uint64(0); off+qjs.ObjectSize <= seg.Size; off += 8 {
			obj, err := qjs.DecodeObject(seg.Data[off:], seg.Addr+off)
			if err != nil {
				continue
			}
			if !obj.ValidClass() {
				continue
			}
			if !fn(obj) {
				return
			}
		}
	}
}

// FindShapeRefs returns object addresses whose shape field holds shape.
// The scan walks mapped data segments looking for the pointer at the
// shape-field offset of a plausible header.
func (i *Inspector) FindShapeRefs(sim *models.MemSim, shape uint64, max int) []uint64 {
	var found []uint64
	ScanObjects(sim, func(o *qjs.Object) bool {
		if o.Shape == shape {
			found = append(found, o.Addr)
			if max > 0 && len(found) >= max {
				return false
			}
		}
		return true
	})
	return found
}

// Dump renders a full report for addr: summary, hexdump context, nearby
// objects, corruption details, and tracker history when available.
func (i *Inspector) Dump(addr uint64) (string, error) {
	res, err := i.Inspect(addr, true)
	if err != nil {
		return "", err
	}
	rule := strings.Repeat("=", 70)
	lines := []string{rule, fmt.Sprintf("Object Dump: 0x%x", addr), rule, "", res.Summary(), ""}

	if len(res.Context) > 0 {
		lines = append(lines, "Memory Context:")
		for _, off := range contextOffsets {
			data, ok := res.Context[off]
			if !ok {
				continue
			}
			marker := ""
			if off == 0 {
				marker = " <-- OBJECT"
			}
			for _, l := range models.HexDump(addr+uint64(off), data, 64) {
				lines = append(lines, fmt.Sprintf("  %+4d: %s%s", off, l, marker))
				marker = ""
			}
		}
		lines = append(lines, "")
	}

	if len(res.Nearby) > 0 {
		lines = append(lines, fmt.Sprintf("Nearby Objects (%d found):", len(res.Nearby)))
		for _, obj := range res.Nearby {
			off := int64(obj.Addr) - int64(addr)
			lines = append(lines, fmt.Sprintf("  %+6d: 0x%x class=%d shape=0x%x", off, obj.Addr, obj.ClassID, obj.Shape))
		}
		lines = append(lines, "")
	}

	if res.Report != nil {
		lines = append(lines, rule, "CORRUPTION DETECTED", rule,
			fmt.Sprintf("Type: %s", res.Report.Kind),
			fmt.Sprintf("Severity: %s", res.Report.Severity),
			fmt.Sprintf("Description: %s", res.Report.Desc))
		if res.Report.RangeHigh != 0 {
			lines = append(lines, fmt.Sprintf("Expected range: 0x%x-0x%x", res.Report.RangeLow, res.Report.RangeHigh))
		}
		if res.Report.Recommendation != "" {
			lines = append(lines, fmt.Sprintf("Recommendation: %s", res.Report.Recommendation))
		}
	}

	if i.Tracker != nil && i.Tracker.Tracked(addr) {
		lines = append(lines, "", i.Tracker.Explain(addr))
	}
	return strings.Join(lines, "\n"), nil
}
