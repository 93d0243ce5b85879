package qjs

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

func objectBytes(classID uint16, flags uint8, weakrefs uint32, shape, prop uint64) []byte {
	buf := make([]byte, ObjectSize)
	binary.LittleEndian.PutUint16(buf[0:], classID)
	buf[2] = flags
	binary.LittleEndian.PutUint32(buf[4:], weakrefs)
	binary.LittleEndian.PutUint64(buf[8:], shape)
	binary.LittleEndian.PutUint64(buf[16:], prop)
	return buf
}

func TestDecodeObject(t *testing.T) {
	buf := objectBytes(2, 0x40, 3, 0x7100002000, 0x7100003000)
	o, err := DecodeObject(buf, 0x5000)
	if err != nil {
		t.Fatal(err)
	}
	assert(t, o.Addr != 0x5000, "addr wrong")
	assert(t, o.ClassID != 2, "class id wrong")
	assert(t, o.Flags != 0x40, "flags wrong")
	assert(t, o.WeakRefCount != 3, "weakref count wrong")
	assert(t, o.Shape != 0x7100002000, "shape wrong")
	assert(t, o.Prop != 0x7100003000, "prop wrong")
	assert(t, !o.ValidClass(), "class 2 should be valid")
}

func TestDecodeObjectShort(t *testing.T) {
	for size := 0; size < ObjectSize; size++ {
		_, err := DecodeObject(make([]byte, size), 0x5000)
		if err == nil {
			t.Fatalf("size %d: expected short read", size)
		}
		if errors.Cause(err) != ErrShortRead {
			t.Fatalf("size %d: wrong error cause: %v", size, err)
		}
	}
}

func TestReadObject(t *testing.T) {
	sim := newSim(0x5000, objectBytes(1, 0, 0, 0x7100002000, 0))
	o, err := ReadObject(sim, 0x5000)
	if err != nil {
		t.Fatal(err)
	}
	assert(t, o.Shape != 0x7100002000, "shape wrong")

	// unmapped read surfaces as a short read
	_, err = ReadObject(sim, 0x9000)
	if err == nil || errors.Cause(err) != ErrShortRead {
		t.Fatalf("unmapped read: wrong error: %v", err)
	}
	// addresses below the valid floor are refused outright
	if _, err := ReadObject(sim, 0x8); err == nil {
		t.Fatal("low address read should fail")
	}
}

func TestShapeStatus(t *testing.T) {
	cases := []struct {
		shape uint64
		want  string
	}{
		{0, "NULL"},
		{0xFFFFFFFFFFFFFFFF, "CORRUPTED (-1)"},
		{0x6, "CORRUPTED (tagged: JS_TAG_UNDEFINED)"},
		{0x0001000000000000, "CORRUPTED (out of range)"},
		{0x2000, "VALID (0x2000)"},
	}
	for _, c := range cases {
		o := &Object{Shape: c.shape}
		if got := o.ShapeStatus(); got != c.want {
			t.Fatalf("0x%x: got %q, want %q", c.shape, got, c.want)
		}
	}
}
