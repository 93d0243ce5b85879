package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

// MemIO is the only contract this tool has with a target: read N bytes at
// an address, or fail. Implementations include a live process (mem
// package) and an offline snapshot (MemSim).
type MemIO interface {
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// MemReader adapts a MemIO to io.Reader at a cursor address.
type MemReader struct {
	IO   MemIO
	Addr uint64
}

func (m *MemReader) Read(p []byte) (int, error) {
	if err := m.IO.MemReadInto(p, m.Addr); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

// MemWriter adapts a MemIO to io.Writer at a cursor address.
type MemWriter struct {
	IO   MemIO
	Addr uint64
}

func (m *MemWriter) Write(p []byte) (int, error) {
	if err := m.IO.MemWrite(m.Addr, p); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
}

func (s *StrucStream) Pack(i interface{}) error {
	return struc.PackWithOrder(s.Stream, i, s.Order)
}

func (s *StrucStream) Unpack(i interface{}) error {
	return struc.UnpackWithOrder(s.Stream, i, s.Order)
}
