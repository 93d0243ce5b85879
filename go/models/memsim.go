package models

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
)

const (
	ProtRead = 1 << iota
	ProtWrite
	ProtExec
)

var ErrUnmapped = errors.New("address not mapped")

type Mem struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte
}

func (m *Mem) Contains(addr uint64) bool {
	return addr >= m.Addr && addr < m.Addr+m.Size
}

func (m *Mem) Overlaps(addr, size uint64) bool {
	e1, e2 := m.Addr+m.Size, addr+size
	return (m.Addr >= addr && m.Addr < e2) || (addr >= m.Addr && addr < e1)
}

func (m *Mem) Split(addr, size uint64) (left, right *Mem) {
	// space on the right
	if addr+size < m.Addr+m.Size {
		ra := addr + size
		rs := m.Addr + m.Size - ra
		o := ra - m.Addr
		right = &Mem{Addr: ra, Size: rs, Prot: m.Prot, Data: m.Data[o : o+rs]}
		m.Data = m.Data[:o]
	}
	// space on the left
	if addr > m.Addr {
		ls := addr - m.Addr
		left = &Mem{Addr: m.Addr, Size: ls, Prot: m.Prot, Data: m.Data[:ls]}
		m.Data = m.Data[ls:]
	}
	// pad the middle
	if addr < m.Addr {
		extra := bytes.Repeat([]byte{0}, int(m.Addr-addr))
		m.Data = append(extra, m.Data...)
	}
	raddr, nraddr := m.Addr+m.Size, addr+size
	if nraddr > raddr {
		extra := bytes.Repeat([]byte{0}, int(nraddr-raddr))
		m.Data = append(m.Data, extra...)
	}
	m.Addr, m.Size = addr, size
	return left, right
}

// MemSim is a sparse segment map holding bytes captured from a target.
// Unlike a live target it is deterministic, which makes it the backing
// store for snapshots and tests.
type MemSim struct {
	mem []*Mem
}

func (m *MemSim) Find(addr uint64) *Mem {
	for _, mm := range m.mem {
		if mm.Contains(addr) {
			return mm
		}
	}
	return nil
}

// Segments returns the mapped segments sorted by address.
func (m *MemSim) Segments() []*Mem {
	out := make([]*Mem, len(m.mem))
	copy(out, m.mem)
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (m *MemSim) Map(addr, size uint64, prot int, zero bool) {
	data := make([]byte, size)
	if !zero {
		m.read(addr, data)
	}
	m.Unmap(addr, size)
	m.mem = append(m.mem, &Mem{Addr: addr, Size: size, Prot: prot, Data: data})
}

// MapData maps p at addr, copying it.
func (m *MemSim) MapData(addr uint64, prot int, p []byte) {
	m.Map(addr, uint64(len(p)), prot, true)
	m.Write(addr, p)
}

func (m *MemSim) Unmap(addr, size uint64) {
	// truncate entries overlapping addr, size
	var tmp, pop []*Mem
	for _, mm := range m.mem {
		if mm.Overlaps(addr, size) {
			pop = append(pop, mm)
			left, right := mm.Split(addr, size)
			if left != nil {
				tmp = append(tmp, left)
			}
			if right != nil {
				tmp = append(tmp, right)
			}
		}
	}
	// remove entries in `pop` from m.mem, drop the middle
	tmp2 := tmp[:]
outer:
	for _, mm := range m.mem {
		for _, p := range pop {
			if mm == p {
				continue outer
			}
		}
		tmp2 = append(tmp2, mm)
	}
	m.mem = tmp2
}

// best-effort read, no unmapped detection
func (m *MemSim) read(addr uint64, p []byte) {
	for _, mm := range m.mem {
		if mm.Contains(addr) {
			o := addr - mm.Addr
			copy(p, mm.Data[o:])
		}
	}
}

// MemReadInto fails with ErrUnmapped unless the whole range is backed by
// one segment. Returning zeroes for holes would defeat every downstream
// validity check.
func (m *MemSim) MemReadInto(p []byte, addr uint64) error {
	if len(p) == 0 {
		return nil
	}
	mm := m.Find(addr)
	if mm == nil || !mm.Contains(addr+uint64(len(p))-1) {
		return errors.Wrapf(ErrUnmapped, "read of %d bytes at 0x%x", len(p), addr)
	}
	o := addr - mm.Addr
	copy(p, mm.Data[o:o+uint64(len(p))])
	return nil
}

func (m *MemSim) MemWrite(addr uint64, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	mm := m.Find(addr)
	if mm == nil || !mm.Contains(addr+uint64(len(p))-1) {
		return errors.Wrapf(ErrUnmapped, "write of %d bytes at 0x%x", len(p), addr)
	}
	o := addr - mm.Addr
	copy(mm.Data[o:], p)
	return nil
}

func (m *MemSim) Write(addr uint64, p []byte) {
	if mm := m.Find(addr); mm != nil {
		copy(mm.Data[addr-mm.Addr:], p)
	}
}
