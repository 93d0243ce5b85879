package qjs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

// wire layout of the shape header (40 bytes, little-endian)
type rawShape struct {
	Hashed           uint8   `struc:"uint8"`
	Pad              [3]byte `struc:"[3]pad"`
	Hash             uint32  `struc:"uint32"`
	PropHashMask     uint32  `struc:"uint32"`
	DeletedPropCount int32   `struc:"int32"`
	PropSize         int32   `struc:"int32"`
	PropCount        int32   `struc:"int32"`
	ShapeHashNext    uint64  `struc:"uint64"`
	Proto            uint64  `struc:"uint64"`
}

// Shape is a decoded JSShape header. Shapes are shared copy-on-write
// between structurally identical objects, so one shape address may be
// referenced by many object headers.
type Shape struct {
	Addr             uint64
	Hashed           bool
	Hash             uint32
	PropHashMask     uint32
	DeletedPropCount int32
	PropSize         int32
	PropCount        int32
	ShapeHashNext    uint64
	Proto            uint64
}

// DecodeShape decodes a shape header from buf, which must hold at least
// ShapeSize bytes.
func DecodeShape(buf []byte, addr uint64) (*Shape, error) {
	if len(buf) < ShapeSize {
		return nil, errors.Wrapf(ErrShortRead, "shape header at 0x%x: have %d bytes, need %d", addr, len(buf), ShapeSize)
	}
	var raw rawShape
	ss := &models.StrucStream{Stream: bytes.NewBuffer(buf), Order: binary.LittleEndian}
	if err := ss.Unpack(&raw); err != nil {
		return nil, errors.Wrapf(err, "unpacking shape header at 0x%x", addr)
	}
	return &Shape{
		Addr:             addr,
		Hashed:           raw.Hashed != 0,
		Hash:             raw.Hash,
		PropHashMask:     raw.PropHashMask,
		DeletedPropCount: raw.DeletedPropCount,
		PropSize:         raw.PropSize,
		PropCount:        raw.PropCount,
		ShapeHashNext:    raw.ShapeHashNext,
		Proto:            raw.Proto,
	}, nil
}

// ReadShape reads and decodes a shape header from target memory.
func ReadShape(m models.MemIO, addr uint64) (*Shape, error) {
	if !IsValidPtr(addr) {
		return nil, errors.Errorf("not a valid shape pointer: 0x%x", addr)
	}
	buf := make([]byte, ShapeSize)
	if err := m.MemReadInto(buf, addr); err != nil {
		return nil, errors.Wrapf(ErrShortRead, "shape header at 0x%x: %s", addr, err)
	}
	return DecodeShape(buf, addr)
}

// Valid checks internal consistency: counts non-negative, used count no
// larger than the slot count, hash mask a power of two minus one (or 0).
func (s *Shape) Valid() bool {
	if s.PropCount < 0 || s.PropSize < 0 {
		return false
	}
	if s.PropCount > s.PropSize {
		return false
	}
	if s.PropHashMask != 0 && s.PropHashMask&(s.PropHashMask+1) != 0 {
		return false
	}
	return true
}

func (s *Shape) String() string {
	return fmt.Sprintf("Shape(0x%x, hash=0x%x, props=%d/%d)", s.Addr, s.Hash, s.PropCount, s.PropSize)
}
