package trace

import (
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
	"github.com/bgmdwldr/shapewatch/go/qjs"
)

var TRACE_MAGIC = "SWTR"

type Header struct {
	// MAGIC ("SWTR")
	Magic string `struc:"[4]byte" json:"-"`
	// file format version
	Version uint32 `json:"version"`
	// pid of the observed target, 0 when replaying a snapshot
	Pid uint32 `json:"pid"`
}

// Writer appends session events to a snappy-compressed log.
type Writer struct {
	w, zw io.WriteCloser
}

func NewWriter(w io.WriteCloser, pid uint32) (*Writer, error) {
	header := &Header{
		Magic:   TRACE_MAGIC,
		Version: 1,
		Pid:     pid,
	}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &Writer{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

// write one event
func (t *Writer) Pack(op models.Op) error {
	_, err := op.Pack(t.zw)
	return err
}

func now() uint64 { return uint64(time.Now().UnixNano()) }

func (t *Writer) ShapeAlloc(addr uint64, propSize int32) error {
	return t.Pack(&OpShapeAlloc{Nsec: now(), Addr: addr, PropSize: propSize})
}

func (t *Writer) ShapeFree(addr uint64) error {
	return t.Pack(&OpShapeFree{Nsec: now(), Addr: addr})
}

func (t *Writer) ObjNew(o *qjs.Object) error {
	return t.Pack(&OpObjNew{Nsec: now(), Addr: o.Addr, ClassID: o.ClassID, Shape: o.Shape})
}

func (t *Writer) RefChange(addr, oldRef, newRef uint64) error {
	return t.Pack(&OpRefChange{Nsec: now(), Addr: addr, OldRef: oldRef, NewRef: newRef})
}

func (t *Writer) Report(r *qjs.Report) error {
	var sev uint8
	if r.Severity == qjs.SevCritical {
		sev = 1
	}
	return t.Pack(&OpReport{
		Nsec:       now(),
		Kind:       uint8(r.Kind),
		Severity:   sev,
		ObjectAddr: r.ObjectAddr,
		Value:      r.Value,
		Desc:       r.Desc,
	})
}

func (t *Writer) Close() {
	t.Pack(&OpExit{})
	t.zw.Close()
	t.w.Close()
}

// Reader replays a session log.
type Reader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header Header
}

func NewReader(r io.ReadCloser) (*Reader, error) {
	t := &Reader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid session log magic")
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

func (t *Reader) Next() (models.Op, error) {
	op, _, err := Unpack(t.zr)
	return op, err
}

func (t *Reader) Close() {
	t.zr.Reset(nil)
	t.r.Close()
}
