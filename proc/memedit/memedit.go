// Package memedit provides byte-oriented and typed access to a tracee's
// address space, layered on a native.Tracer and proc/stopguard.
package memedit

import (
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/vantage-systems/proctrace/internal/config"
	"github.com/vantage-systems/proctrace/internal/logflags"
	"github.com/vantage-systems/proctrace/proc"
	"github.com/vantage-systems/proctrace/proc/stopguard"
)

// AccessMode selects whether an Editor's underlying /proc/<pid>/mem
// descriptor was opened for reading only or for reading and writing.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

// tracer is the surface memedit needs from a native.Tracer.
type tracer interface {
	Process() proc.Process
	Stop() error
	Cont(sig syscall.Signal) error
	ReadWord(addr uintptr) (uintptr, error)
	WriteWord(addr uintptr, word uintptr) error
}

// Editor reads one tracee's memory through /proc/<pid>/mem and writes it
// either through ptrace word pokes or directly through that pseudo-file,
// as cfg.WriteMode selects; a rejected pseudo-file write is returned as
// an error, not retried through word pokes.
type Editor struct {
	tracer tracer
	fd     int
	path   string
	mode   AccessMode
	cfg    config.Config
}

// New opens /proc/<pid>/mem for t's tracee with O_RDONLY or O_RDWR
// according to mode.
func New(t tracer, mode AccessMode, cfg config.Config) (*Editor, error) {
	path := t.Process().Dir() + "/mem"
	flags := unix.O_RDONLY
	if mode == ReadWrite {
		flags = unix.O_RDWR
	}
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, proc.NewFilesystemError("open", path, err.(syscall.Errno))
	}
	return &Editor{tracer: t, fd: fd, path: path, mode: mode, cfg: cfg}, nil
}

// Dup duplicates the editor's file descriptor, producing an independent
// Editor over the same mem file and access mode. Go has no move
// constructor, so unlike the source's Memory(Memory&&), ownership
// transfer here is just an ordinary assignment; ordinary Go values need
// no ceremony to "empty" the source.
func (e *Editor) Dup() (*Editor, error) {
	newFd, err := unix.Dup(e.fd)
	if err != nil {
		return nil, proc.NewSystemAPIError("dup", err.(syscall.Errno))
	}
	return &Editor{tracer: e.tracer, fd: newFd, path: e.path, mode: e.mode, cfg: e.cfg}, nil
}

// Close releases the underlying descriptor.
func (e *Editor) Close() error {
	return unix.Close(e.fd)
}

// IsReadable reports whether e supports reads (always true).
func (e *Editor) IsReadable() bool { return true }

// IsWritable reports whether e was opened for writing.
func (e *Editor) IsWritable() bool { return e.mode == ReadWrite }

// Read reads len(out) bytes starting at addr directly from the
// pseudo-file, which is always readable regardless of WriteMode. Like
// every bulk memory I/O operation, it declares a stop-guard at entry so
// the read observes a coherent, non-racing address space; e.tracer is
// nil only for the pseudofile-over-a-plain-file test double, which has
// no live tracee to guard.
func (e *Editor) Read(out []byte, addr uint64) (int, error) {
	if e.tracer != nil {
		guard, err := stopguard.Acquire(e.tracer)
		if err != nil {
			return 0, err
		}
		defer guard.Release()
	}

	n, err := unix.Pread(e.fd, out, int64(addr))
	if err != nil {
		errno := err.(syscall.Errno)
		if isSeekErrno(errno) {
			return 0, proc.NewFilesystemError("pread(/proc/pid/mem)", e.path, errno)
		}
		return 0, proc.NewSystemAPIError("pread(/proc/pid/mem)", errno)
	}
	return n, nil
}

// isSeekErrno reports whether errno indicates Pread's implicit seek
// rejected the offset (an invalid address) rather than the read itself
// failing against a validly-sought position.
func isSeekErrno(errno syscall.Errno) bool {
	return errno == unix.ESPIPE || errno == unix.EINVAL
}

// Write writes data at addr, honoring the configured WriteMode. In
// portable mode (the default) it stops the tracee and performs
// PTRACE_POKEDATA word writes; in pseudofile mode it writes directly
// through the open descriptor, which the running kernel may or may not
// permit.
func (e *Editor) Write(addr uint64, data []byte) (int, error) {
	if !e.IsWritable() {
		return 0, proc.NewArgumentError("Write", "editor was not opened for writing")
	}
	if e.cfg.WriteMode == config.WriteModePseudoFile {
		return e.writePseudoFile(addr, data)
	}
	return e.writePortable(addr, data)
}

func (e *Editor) writePseudoFile(addr uint64, data []byte) (int, error) {
	n, err := unix.Pwrite(e.fd, data, int64(addr))
	if err != nil {
		return 0, proc.NewSystemAPIError("pwrite(/proc/pid/mem)", err.(syscall.Errno))
	}
	return n, nil
}

// writePortable writes through PTRACE_POKEDATA, one word at a time,
// decrementing the remaining-bytes count on every iteration. The
// original Ethon MemoryEditor's portable write path incremented a copy
// of the remaining count instead of decrementing the real one, an
// infinite loop bug documented as not to be reproduced; this loop always
// subtracts what it just wrote from remaining.
func (e *Editor) writePortable(addr uint64, data []byte) (int, error) {
	const wordSize = 8
	log := logflags.MemEditLogger()

	guard, err := stopguard.Acquire(e.tracer)
	if err != nil {
		return 0, err
	}
	defer guard.Release()

	written := 0
	remaining := len(data)
	for remaining > 0 {
		off := uintptr(addr) + uintptr(written)
		if remaining >= wordSize {
			word := wordFromBytes(data[written : written+wordSize])
			if err := e.tracer.WriteWord(off, word); err != nil {
				return written, err
			}
			written += wordSize
			remaining -= wordSize
			continue
		}
		orig, err := e.tracer.ReadWord(off)
		if err != nil {
			return written, err
		}
		buf := bytesFromWord(orig)
		copy(buf[:remaining], data[written:])
		if err := e.tracer.WriteWord(off, wordFromBytes(buf[:])); err != nil {
			return written, err
		}
		written += remaining
		remaining = 0
	}
	log.WithField("bytes", written).WithField("size", humanize.Bytes(uint64(written))).Debug("portable write complete")
	return written, nil
}

