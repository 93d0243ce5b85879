package mem

import (
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/bgmdwldr/shapewatch/go/models"
)

// Snapshot container: struc-packed header and segment table, followed by
// the segment bytes in table order behind a snappy stream. Dumps are
// taken on-device and analyzed offline.

var SNAP_MAGIC = "SWSN"

type SnapHeader struct {
	// MAGIC ("SWSN")
	Magic string `struc:"[4]byte"`
	// file format version
	Version uint32
	// pid of the dumped target
	Pid      uint32
	SegCount uint32
}

type SnapSegment struct {
	Addr uint64
	Size uint64
	Prot uint8
}

// Snapshot is a loaded memory dump.
type Snapshot struct {
	Pid uint32
	Sim *models.MemSim
}

// WriteSnapshot dumps every segment of sim to w.
func WriteSnapshot(w io.WriteCloser, pid uint32, sim *models.MemSim) error {
	segs := sim.Segments()
	header := &SnapHeader{
		Magic:    SNAP_MAGIC,
		Version:  1,
		Pid:      pid,
		SegCount: uint32(len(segs)),
	}
	if err := struc.Pack(w, header); err != nil {
		return errors.Wrap(err, "failed to pack snapshot header")
	}
	for _, seg := range segs {
		rec := &SnapSegment{Addr: seg.Addr, Size: seg.Size, Prot: uint8(seg.Prot)}
		if err := struc.Pack(w, rec); err != nil {
			return errors.Wrapf(err, "failed to pack segment at 0x%x", seg.Addr)
		}
	}
	zw := snappy.NewBufferedWriter(w)
	for _, seg := range segs {
		if _, err := zw.Write(seg.Data); err != nil {
			return errors.Wrapf(err, "failed to write segment at 0x%x", seg.Addr)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush snapshot")
	}
	return w.Close()
}

// ReadSnapshot loads a dump into a MemSim.
func ReadSnapshot(r io.ReadCloser) (*Snapshot, error) {
	defer r.Close()
	var header SnapHeader
	if err := struc.Unpack(r, &header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack snapshot header")
	}
	if header.Magic != SNAP_MAGIC {
		return nil, errors.New("invalid snapshot magic")
	}
	segs := make([]SnapSegment, header.SegCount)
	for i := range segs {
		if err := struc.Unpack(r, &segs[i]); err != nil {
			return nil, errors.Wrapf(err, "failed to unpack segment record %d", i)
		}
	}
	sim := &models.MemSim{}
	zr := snappy.NewReader(r)
	for _, seg := range segs {
		data := make([]byte, seg.Size)
		if _, err := io.ReadFull(zr, data); err != nil {
			return nil, errors.Wrapf(err, "failed to read segment at 0x%x", seg.Addr)
		}
		sim.MapData(seg.Addr, int(seg.Prot), data)
	}
	return &Snapshot{Pid: header.Pid, Sim: sim}, nil
}

// LoadSnapshot opens and loads a dump from path.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening snapshot %s", path)
	}
	return ReadSnapshot(f)
}
