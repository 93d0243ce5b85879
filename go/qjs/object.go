package qjs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

var ErrShortRead = errors.New("short read")

// wire layout of the object header (24 bytes, little-endian)
type rawObject struct {
	ClassID      uint16 `struc:"uint16"`
	Flags        uint8  `struc:"uint8"`
	Pad          uint8  `struc:"pad"`
	WeakRefCount uint32 `struc:"uint32"`
	Shape        uint64 `struc:"uint64"`
	Prop         uint64 `struc:"uint64"`
}

// Object is a decoded JSObject header.
type Object struct {
	Addr         uint64
	ClassID      uint16
	Flags        uint8
	WeakRefCount uint32
	Shape        uint64
	Prop         uint64
}

// DecodeObject decodes an object header from buf, which must hold at least
// ObjectSize bytes. addr is the remote address buf was read from.
func DecodeObject(buf []byte, addr uint64) (*Object, error) {
	if len(buf) < ObjectSize {
		return nil, errors.Wrapf(ErrShortRead, "object header at 0x%x: have %d bytes, need %d", addr, len(buf), ObjectSize)
	}
	var raw rawObject
	ss := &models.StrucStream{Stream: bytes.NewBuffer(buf), Order: binary.LittleEndian}
	if err := ss.Unpack(&raw); err != nil {
		return nil, errors.Wrapf(err, "unpacking object header at 0x%x", addr)
	}
	return &Object{
		Addr:         addr,
		ClassID:      raw.ClassID,
		Flags:        raw.Flags,
		WeakRefCount: raw.WeakRefCount,
		Shape:        raw.Shape,
		Prop:         raw.Prop,
	}, nil
}

// ReadObject reads and decodes an object header from target memory.
func ReadObject(m models.MemIO, addr uint64) (*Object, error) {
	if addr < MinValidPtr {
		return nil, errors.Errorf("refusing to read object below 0x%x: 0x%x", uint64(MinValidPtr), addr)
	}
	buf := make([]byte, ObjectSize)
	if err := m.MemReadInto(buf, addr); err != nil {
		return nil, errors.Wrapf(ErrShortRead, "object header at 0x%x: %s", addr, err)
	}
	return DecodeObject(buf, addr)
}

// ValidClass reports whether the class id is in the plausible range.
func (o *Object) ValidClass() bool {
	return o.ClassID >= ClassIDMin && o.ClassID <= ClassIDMax
}

// ShapeStatus describes the shape field for diagnostics.
func (o *Object) ShapeStatus() string {
	switch {
	case o.Shape == 0:
		return "NULL"
	case o.Shape == 0xFFFFFFFFFFFFFFFF:
		return "CORRUPTED (-1)"
	case LooksTagged(o.Shape):
		return fmt.Sprintf("CORRUPTED (tagged: %s)", TagName(o.Shape))
	case o.Shape < MinValidPtr:
		return fmt.Sprintf("CORRUPTED (small value 0x%x)", o.Shape)
	case o.Shape > MaxValidPtr:
		return "CORRUPTED (out of range)"
	}
	return fmt.Sprintf("VALID (0x%x)", o.Shape)
}

func (o *Object) String() string {
	return fmt.Sprintf("Object(0x%x, class=%d, shape=0x%x, prop=0x%x)", o.Addr, o.ClassID, o.Shape, o.Prop)
}
