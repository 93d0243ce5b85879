package qjs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

// wire layout of a JSValue cell (16 bytes: union, then signed tag)
type rawValue struct {
	U   uint64 `struc:"uint64"`
	Tag int64  `struc:"int64"`
}

// Value is a decoded JSValue cell. Negative tags mark heap references,
// non-negative tags encode scalars directly in the union word.
type Value struct {
	Addr uint64
	U    uint64
	Tag  int64
}

// DecodeValue decodes a JSValue cell from buf, which must hold at least
// ValueSize bytes.
func DecodeValue(buf []byte, addr uint64) (*Value, error) {
	if len(buf) < ValueSize {
		return nil, errors.Wrapf(ErrShortRead, "value cell at 0x%x: have %d bytes, need %d", addr, len(buf), ValueSize)
	}
	var raw rawValue
	ss := &models.StrucStream{Stream: bytes.NewBuffer(buf), Order: binary.LittleEndian}
	if err := ss.Unpack(&raw); err != nil {
		return nil, errors.Wrapf(err, "unpacking value cell at 0x%x", addr)
	}
	return &Value{Addr: addr, U: raw.U, Tag: raw.Tag}, nil
}

// ReadValue reads and decodes a JSValue cell from target memory.
func ReadValue(m models.MemIO, addr uint64) (*Value, error) {
	if addr < MinValidPtr {
		return nil, errors.Errorf("refusing to read value below 0x%x: 0x%x", uint64(MinValidPtr), addr)
	}
	buf := make([]byte, ValueSize)
	if err := m.MemReadInto(buf, addr); err != nil {
		return nil, errors.Wrapf(ErrShortRead, "value cell at 0x%x: %s", addr, err)
	}
	return DecodeValue(buf, addr)
}

func (v *Value) IsObject() bool { return v.Tag < 0 }
func (v *Value) IsInt() bool    { return v.Tag == TagInt }

// ObjectPtr returns the heap pointer held by an object reference, or 0.
func (v *Value) ObjectPtr() uint64 {
	if v.IsObject() {
		return v.U
	}
	return 0
}

func (v *Value) TypeName() string {
	if v.Tag < 0 {
		return "JS_TAG_OBJECT (reference)"
	}
	switch v.Tag {
	case TagInt:
		return "JS_TAG_INT"
	case TagUndefined:
		return "JS_TAG_UNDEFINED"
	case TagNull:
		return "JS_TAG_NULL"
	case TagBool:
		return "JS_TAG_BOOL"
	case TagException:
		return "JS_TAG_EXCEPTION"
	case TagFloat64:
		return "JS_TAG_FLOAT64"
	}
	return fmt.Sprintf("JS_TAG_UNKNOWN(%d)", v.Tag)
}

func (v *Value) String() string {
	return fmt.Sprintf("Value(%s, u=0x%x)", v.TypeName(), v.U)
}
