package mem

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ProcessIO reads a live target's memory through process_vm_readv, which
// works without stopping the target. Writes use process_vm_writev and
// require the same ptrace-level permissions.
type ProcessIO struct {
	Pid int
}

func NewProcessIO(pid int) *ProcessIO {
	return &ProcessIO{Pid: pid}
}

func (p *ProcessIO) MemReadInto(buf []byte, addr uint64) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(p.Pid, local, remote, 0)
	if err != nil {
		return errors.Wrapf(err, "process_vm_readv(%d, 0x%x, %d)", p.Pid, addr, len(buf))
	}
	if n != len(buf) {
		return errors.Errorf("short read at 0x%x: %d of %d bytes", addr, n, len(buf))
	}
	return nil
}

func (p *ProcessIO) MemWrite(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0], Len: uint64(len(buf))}}
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMWritev(p.Pid, local, remote, 0)
	if err != nil {
		return errors.Wrapf(err, "process_vm_writev(%d, 0x%x, %d)", p.Pid, addr, len(buf))
	}
	if n != len(buf) {
		return errors.Errorf("short write at 0x%x: %d of %d bytes", addr, n, len(buf))
	}
	return nil
}
