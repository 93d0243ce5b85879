package trace

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

var order = binary.LittleEndian

const (
	OP_NOP         = 0
	OP_SHAPE_ALLOC = 1
	OP_SHAPE_FREE  = 2
	OP_OBJ_NEW     = 3
	OP_REF_CHANGE  = 4
	OP_REPORT      = 5
	OP_EXIT        = 6
)

func Unpack(r io.Reader) (models.Op, int, error) {
	var tmp [1]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, 0, err
	}
	var op models.Op
	switch tmp[0] {
	case OP_NOP:
		op = &OpNop{}
	case OP_SHAPE_ALLOC:
		op = &OpShapeAlloc{}
	case OP_SHAPE_FREE:
		op = &OpShapeFree{}
	case OP_OBJ_NEW:
		op = &OpObjNew{}
	case OP_REF_CHANGE:
		op = &OpRefChange{}
	case OP_REPORT:
		op = &OpReport{}
	case OP_EXIT:
		op = &OpExit{}
	default:
		return nil, 0, errors.Errorf("unknown op: %d", tmp[0])
	}
	n, err := op.Unpack(r)
	return op, n + 1, err
}

// OpName returns the wire name of an op for printing.
func OpName(op models.Op) string {
	switch op.(type) {
	case *OpShapeAlloc:
		return "shape_alloc"
	case *OpShapeFree:
		return "shape_free"
	case *OpObjNew:
		return "obj_new"
	case *OpRefChange:
		return "ref_change"
	case *OpReport:
		return "report"
	case *OpExit:
		return "exit"
	}
	return "nop"
}

type OpNop struct{}

func (o *OpNop) Sizeof() int { return 1 }
func (o *OpNop) Pack(w io.Writer) (int, error) {
	return w.Write([]byte{OP_NOP})
}
func (o *OpNop) Unpack(r io.Reader) (int, error) { return 0, nil }

type OpExit struct{ OpNop }

func (o *OpExit) Pack(w io.Writer) (int, error) {
	return w.Write([]byte{OP_EXIT})
}

// shape allocated; PropSize is the declared slot count at allocation
type OpShapeAlloc struct {
	Nsec     uint64 `json:"nsec"`
	Addr     uint64 `json:"addr"`
	PropSize int32  `json:"prop_size"`
}

func (o *OpShapeAlloc) Sizeof() int { return 1 + 8 + 8 + 4 }
func (o *OpShapeAlloc) Pack(w io.Writer) (int, error) {
	var p [1 + 8 + 8 + 4]byte
	p[0] = OP_SHAPE_ALLOC
	order.PutUint64(p[1:], o.Nsec)
	order.PutUint64(p[9:], o.Addr)
	order.PutUint32(p[17:], uint32(o.PropSize))
	return w.Write(p[:])
}
func (o *OpShapeAlloc) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 8 + 4]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Nsec = order.Uint64(tmp[:])
		o.Addr = order.Uint64(tmp[8:])
		o.PropSize = int32(order.Uint32(tmp[16:]))
	}
	return n, err
}

type OpShapeFree struct {
	Nsec uint64 `json:"nsec"`
	Addr uint64 `json:"addr"`
}

func (o *OpShapeFree) Sizeof() int { return 1 + 8 + 8 }
func (o *OpShapeFree) Pack(w io.Writer) (int, error) {
	var p [1 + 8 + 8]byte
	p[0] = OP_SHAPE_FREE
	order.PutUint64(p[1:], o.Nsec)
	order.PutUint64(p[9:], o.Addr)
	return w.Write(p[:])
}
func (o *OpShapeFree) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Nsec = order.Uint64(tmp[:])
		o.Addr = order.Uint64(tmp[8:])
	}
	return n, err
}

type OpObjNew struct {
	Nsec    uint64 `json:"nsec"`
	Addr    uint64 `json:"addr"`
	ClassID uint16 `json:"class_id"`
	Shape   uint64 `json:"shape"`
}

func (o *OpObjNew) Sizeof() int { return 1 + 8 + 8 + 2 + 8 }
func (o *OpObjNew) Pack(w io.Writer) (int, error) {
	var p [1 + 8 + 8 + 2 + 8]byte
	p[0] = OP_OBJ_NEW
	order.PutUint64(p[1:], o.Nsec)
	order.PutUint64(p[9:], o.Addr)
	order.PutUint16(p[17:], o.ClassID)
	order.PutUint64(p[19:], o.Shape)
	return w.Write(p[:])
}
func (o *OpObjNew) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 8 + 2 + 8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Nsec = order.Uint64(tmp[:])
		o.Addr = order.Uint64(tmp[8:])
		o.ClassID = order.Uint16(tmp[16:])
		o.Shape = order.Uint64(tmp[18:])
	}
	return n, err
}

type OpRefChange struct {
	Nsec   uint64 `json:"nsec"`
	Addr   uint64 `json:"addr"`
	OldRef uint64 `json:"old_ref"`
	NewRef uint64 `json:"new_ref"`
}

func (o *OpRefChange) Sizeof() int { return 1 + 8 + 8 + 8 + 8 }
func (o *OpRefChange) Pack(w io.Writer) (int, error) {
	var p [1 + 8 + 8 + 8 + 8]byte
	p[0] = OP_REF_CHANGE
	order.PutUint64(p[1:], o.Nsec)
	order.PutUint64(p[9:], o.Addr)
	order.PutUint64(p[17:], o.OldRef)
	order.PutUint64(p[25:], o.NewRef)
	return w.Write(p[:])
}
func (o *OpRefChange) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 8 + 8 + 8]byte
	n, err := io.ReadFull(r, tmp[:])
	if err == nil {
		o.Nsec = order.Uint64(tmp[:])
		o.Addr = order.Uint64(tmp[8:])
		o.OldRef = order.Uint64(tmp[16:])
		o.NewRef = order.Uint64(tmp[24:])
	}
	return n, err
}

type OpReport struct {
	Nsec       uint64 `json:"nsec"`
	Kind       uint8  `json:"kind"`
	Severity   uint8  `json:"severity"`
	ObjectAddr uint64 `json:"object_addr"`
	Value      uint64 `json:"value"`
	Desc       string `json:"desc"`
}

func (o *OpReport) Sizeof() int { return 1 + 8 + 1 + 1 + 8 + 8 + 2 + len(o.Desc) }
func (o *OpReport) Pack(w io.Writer) (int, error) {
	p := make([]byte, o.Sizeof())
	p[0] = OP_REPORT
	order.PutUint64(p[1:], o.Nsec)
	p[9] = o.Kind
	p[10] = o.Severity
	order.PutUint64(p[11:], o.ObjectAddr)
	order.PutUint64(p[19:], o.Value)
	order.PutUint16(p[27:], uint16(len(o.Desc)))
	copy(p[29:], o.Desc)
	return w.Write(p)
}
func (o *OpReport) Unpack(r io.Reader) (int, error) {
	var tmp [8 + 1 + 1 + 8 + 8 + 2]byte
	total, err := io.ReadFull(r, tmp[:])
	if err != nil {
		return total, err
	}
	o.Nsec = order.Uint64(tmp[:])
	o.Kind = tmp[8]
	o.Severity = tmp[9]
	o.ObjectAddr = order.Uint64(tmp[10:])
	o.Value = order.Uint64(tmp[18:])
	size := order.Uint16(tmp[26:])
	desc := make([]byte, size)
	n, err := io.ReadFull(r, desc)
	if err == nil {
		o.Desc = string(desc)
	}
	return total + n, err
}
