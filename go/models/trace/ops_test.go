package trace

import (
	"bytes"
	"io"
	"testing"

	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

type bufCloser struct{ bytes.Buffer }

func (b *bufCloser) Close() error { return nil }

func TestOpRoundTrip(t *testing.T) {
	ops := []models.Op{
		&OpShapeAlloc{Nsec: 1000, Addr: 0x2000, PropSize: 8},
		&OpShapeFree{Nsec: 2000, Addr: 0x2000},
		&OpObjNew{Nsec: 3000, Addr: 0x5000, ClassID: 2, Shape: 0x2000},
		&OpRefChange{Nsec: 4000, Addr: 0x5000, OldRef: 0x2000, NewRef: 0x3000},
		&OpReport{Nsec: 5000, Kind: uint8(qjs.KindUseAfterFree), Severity: 1, ObjectAddr: 0x5000, Value: 0x2000, Desc: "shape was freed but is still referenced"},
	}
	for _, op := range ops {
		var buf bytes.Buffer
		n, err := op.Pack(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if n != op.Sizeof() {
			t.Fatalf("%s: packed %d bytes, Sizeof says %d", OpName(op), n, op.Sizeof())
		}
		out, total, err := Unpack(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if total != op.Sizeof() {
			t.Fatalf("%s: unpacked %d bytes, Sizeof says %d", OpName(op), total, op.Sizeof())
		}
		switch o := out.(type) {
		case *OpShapeAlloc:
			in := op.(*OpShapeAlloc)
			if *o != *in {
				t.Fatalf("shape_alloc mismatch: %+v != %+v", o, in)
			}
		case *OpShapeFree:
			in := op.(*OpShapeFree)
			if *o != *in {
				t.Fatalf("shape_free mismatch: %+v != %+v", o, in)
			}
		case *OpObjNew:
			in := op.(*OpObjNew)
			if *o != *in {
				t.Fatalf("obj_new mismatch: %+v != %+v", o, in)
			}
		case *OpRefChange:
			in := op.(*OpRefChange)
			if *o != *in {
				t.Fatalf("ref_change mismatch: %+v != %+v", o, in)
			}
		case *OpReport:
			in := op.(*OpReport)
			if *o != *in {
				t.Fatalf("report mismatch: %+v != %+v", o, in)
			}
		default:
			t.Fatalf("unexpected op type %T", out)
		}
	}
}

func TestUnpackUnknownOp(t *testing.T) {
	if _, _, err := Unpack(bytes.NewReader([]byte{0xff})); err == nil {
		t.Fatal("expected unknown op error")
	}
}

func TestSessionLog(t *testing.T) {
	var buf bufCloser
	w, err := NewWriter(&buf, 1234)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.ShapeAlloc(0x2000, 8); err != nil {
		t.Fatal(err)
	}
	if err := w.ObjNew(&qjs.Object{Addr: 0x5000, ClassID: 1, Shape: 0x2000}); err != nil {
		t.Fatal(err)
	}
	if err := w.ShapeFree(0x2000); err != nil {
		t.Fatal(err)
	}
	report := &qjs.Report{
		Kind:       qjs.KindUseAfterFree,
		ObjectAddr: 0x5000,
		Value:      0x2000,
		Desc:       "shape was freed but is still referenced",
		Severity:   qjs.SevCritical,
	}
	if err := w.Report(report); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := NewReader(io.NopCloser(bytes.NewReader(buf.Bytes())))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Header.Pid != 1234 || r.Header.Version != 1 {
		t.Fatalf("header wrong: %+v", r.Header)
	}

	var names []string
	for {
		op, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		names = append(names, OpName(op))
		if rep, ok := op.(*OpReport); ok {
			if qjs.Kind(rep.Kind) != qjs.KindUseAfterFree || rep.Severity != 1 {
				t.Fatalf("report content wrong: %+v", rep)
			}
		}
		if _, ok := op.(*OpExit); ok {
			break
		}
	}
	want := []string{"shape_alloc", "obj_new", "shape_free", "report", "exit"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, names[i], want[i])
		}
	}
}

func TestBadMagic(t *testing.T) {
	data := append([]byte("XXXX"), make([]byte, 8)...)
	if _, err := NewReader(io.NopCloser(bytes.NewReader(data))); err == nil {
		t.Fatal("expected magic rejection")
	}
}
