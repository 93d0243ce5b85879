package inspect

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

const (
	heapBase  = 0x7100000000
	shapeAddr = heapBase + 0x2000
)

func putObject(seg []byte, off int, classID uint16, shape, prop uint64) {
	binary.LittleEndian.PutUint16(seg[off:], classID)
	binary.LittleEndian.PutUint64(seg[off+8:], shape)
	binary.LittleEndian.PutUint64(seg[off+16:], prop)
}

func putShape(seg []byte, off int, size, count int32, proto uint64) {
	seg[off] = 1
	binary.LittleEndian.PutUint32(seg[off+8:], 7)
	binary.LittleEndian.PutUint32(seg[off+16:], uint32(size))
	binary.LittleEndian.PutUint32(seg[off+20:], uint32(count))
	binary.LittleEndian.PutUint64(seg[off+32:], proto)
}

// builds a heap with one shape, one healthy object at +0x100, and one
// object with a tagged-scalar shape field at +0x200
func testHeap() *models.MemSim {
	seg := make([]byte, 0x4000)
	putShape(seg, 0x2000, 8, 3, heapBase+0x100)
	putObject(seg, 0x100, 2, shapeAddr, heapBase+0x300)
	putObject(seg, 0x200, 2, 0x6, 0)
	sim := &models.MemSim{}
	sim.MapData(heapBase, models.ProtRead|models.ProtWrite, seg)
	return sim
}

func TestInspectHealthy(t *testing.T) {
	sim := testHeap()
	ins := New(sim, nil)
	res, err := ins.Inspect(heapBase+0x100, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Corrupted() {
		t.Fatalf("healthy object flagged: %v", res.Report)
	}
	if res.Shape == nil {
		t.Fatal("shape not followed")
	}
	if res.Shape.PropCount != 3 || res.Shape.PropSize != 8 {
		t.Fatalf("shape decode wrong: %+v", res.Shape)
	}
	if !strings.Contains(res.Summary(), "class_id: 2") {
		t.Fatalf("summary missing class id:\n%s", res.Summary())
	}
}

func TestInspectCorrupt(t *testing.T) {
	sim := testHeap()
	ins := New(sim, nil)
	res, err := ins.Inspect(heapBase+0x200, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Corrupted() {
		t.Fatal("tagged shape field not flagged")
	}
	if res.Report.Kind != qjs.KindTaggedScalar {
		t.Fatalf("got %s, want %s", res.Report.Kind, qjs.KindTaggedScalar)
	}
	if res.Shape != nil {
		t.Fatal("corrupt reference should not decode a shape")
	}
}

func TestInspectContext(t *testing.T) {
	sim := testHeap()
	ins := New(sim, nil)
	res, err := ins.Inspect(heapBase+0x200, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Context) == 0 {
		t.Fatal("no memory context captured")
	}
	if _, ok := res.Context[0]; !ok {
		t.Fatal("context missing the object window")
	}
	// the healthy object at -0x100 is inside the probe radius
	found := false
	for _, o := range res.Nearby {
		if o.Addr == heapBase+0x100 {
			found = true
		}
	}
	if !found {
		t.Fatal("nearby object not found")
	}
}

func TestConfigBounds(t *testing.T) {
	sim := testHeap()
	ins := New(sim, &models.Config{MaxPtr: 0x1000000})
	res, err := ins.Inspect(heapBase+0x100, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Report == nil || res.Report.Kind != qjs.KindOutOfRangeHigh {
		t.Fatalf("narrowed bound not applied: %+v", res.Report)
	}
}

func TestScanObjects(t *testing.T) {
	sim := testHeap()
	var addrs []uint64
	ScanObjects(sim, func(o *qjs.Object) bool {
		addrs = append(addrs, o.Addr)
		return true
	})
	has := func(addr uint64) bool {
		for _, a := range addrs {
			if a == addr {
				return true
			}
		}
		return false
	}
	if !has(heapBase+0x100) || !has(heapBase+0x200) {
		t.Fatalf("scan missed planted objects: %v", addrs)
	}
}

func TestScanSkipsExec(t *testing.T) {
	seg := make([]byte, 0x1000)
	putObject(seg, 0x100, 2, shapeAddr, 0)
	sim := &models.MemSim{}
	sim.MapData(heapBase, models.ProtRead|models.ProtExec, seg)
	count := 0
	ScanObjects(sim, func(o *qjs.Object) bool {
		count++
		return true
	})
	if count != 0 {
		t.Fatalf("executable segment scanned: %d hits", count)
	}
}

func TestFindShapeRefs(t *testing.T) {
	sim := testHeap()
	ins := New(sim, nil)
	refs := ins.FindShapeRefs(sim, shapeAddr, 0)
	if len(refs) != 1 || refs[0] != heapBase+0x100 {
		t.Fatalf("wrong refs: %v", refs)
	}
}

func TestDump(t *testing.T) {
	sim := testHeap()
	ins := New(sim, nil)
	ins.Tracker = qjs.NewTracker()
	ins.Tracker.Created(heapBase+0x200, 0x6)

	dump, err := ins.Dump(heapBase + 0x200)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CORRUPTION DETECTED", "tagged", "Memory Context:", "history for"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestPrintReport(t *testing.T) {
	d := qjs.NewDetector()
	r := d.CheckRef(0, 0x5000)
	var buf bytes.Buffer
	PrintReport(&buf, r, false)
	out := buf.String()
	if !strings.Contains(out, "null_shape") || !strings.Contains(out, "0x5000") {
		t.Fatalf("report line wrong: %s", out)
	}
	buf.Reset()
	PrintReport(&buf, nil, false)
	if buf.Len() != 0 {
		t.Fatal("nil report should print nothing")
	}
}
