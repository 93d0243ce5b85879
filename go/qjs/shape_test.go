package qjs

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

func shapeBytes(hashed uint8, hash, mask uint32, deleted, size, count int32, next, proto uint64) []byte {
	buf := make([]byte, ShapeSize)
	buf[0] = hashed
	binary.LittleEndian.PutUint32(buf[4:], hash)
	binary.LittleEndian.PutUint32(buf[8:], mask)
	binary.LittleEndian.PutUint32(buf[12:], uint32(deleted))
	binary.LittleEndian.PutUint32(buf[16:], uint32(size))
	binary.LittleEndian.PutUint32(buf[20:], uint32(count))
	binary.LittleEndian.PutUint64(buf[24:], next)
	binary.LittleEndian.PutUint64(buf[32:], proto)
	return buf
}

func TestDecodeShape(t *testing.T) {
	buf := shapeBytes(1, 0xdeadbeef, 7, 1, 8, 3, 0x7100004000, 0x7100005000)
	s, err := DecodeShape(buf, 0x2000)
	if err != nil {
		t.Fatal(err)
	}
	assert(t, !s.Hashed, "hashed flag wrong")
	assert(t, s.Hash != 0xdeadbeef, "hash wrong")
	assert(t, s.PropHashMask != 7, "mask wrong")
	assert(t, s.DeletedPropCount != 1, "deleted count wrong")
	assert(t, s.PropSize != 8, "slot count wrong")
	assert(t, s.PropCount != 3, "used count wrong")
	assert(t, s.ShapeHashNext != 0x7100004000, "hash chain wrong")
	assert(t, s.Proto != 0x7100005000, "proto wrong")
	assert(t, !s.Valid(), "shape should be valid")
}

func TestDecodeShapeShort(t *testing.T) {
	for _, size := range []int{0, 1, ShapeSize - 1} {
		_, err := DecodeShape(make([]byte, size), 0x2000)
		if err == nil || errors.Cause(err) != ErrShortRead {
			t.Fatalf("size %d: wrong error: %v", size, err)
		}
	}
}

func TestShapeValid(t *testing.T) {
	cases := []struct {
		size, count int32
		mask        uint32
		ok          bool
	}{
		{8, 3, 7, true},
		{8, 8, 0, true},
		{8, 9, 0, false},  // used > slots
		{-1, 0, 0, false}, // negative slots
		{8, -1, 0, false}, // negative used
		{8, 3, 6, false},  // mask not 2^n-1
		{8, 3, 15, true},
	}
	for i, c := range cases {
		s := &Shape{PropSize: c.size, PropCount: c.count, PropHashMask: c.mask}
		if s.Valid() != c.ok {
			t.Fatalf("case %d: Valid() = %v, want %v", i, s.Valid(), c.ok)
		}
	}
}

func TestReadShapeRejectsBadPtr(t *testing.T) {
	sim := newSim(0x2000, shapeBytes(0, 0, 0, 0, 4, 2, 0, 0))
	if _, err := ReadShape(sim, 0x2000); err != nil {
		t.Fatal(err)
	}
	for _, addr := range []uint64{0, 0x3, 0x2004, 0x0001000000000000} {
		if _, err := ReadShape(sim, addr); err == nil {
			t.Fatalf("0x%x: expected pointer rejection", addr)
		}
	}
}
