package native

import (
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/vantage-systems/proctrace/proc"
)

// GetRegisters reads the tracee's general-purpose registers via
// PTRACE_GETREGS.
func (t *Tracer) GetRegisters() (sys.PtraceRegs, error) {
	var regs sys.PtraceRegs
	var err error
	t.execPtraceFunc(func() {
		err = sys.PtraceGetRegs(t.pid, &regs)
	})
	if err != nil {
		return sys.PtraceRegs{}, proc.NewSystemAPIError("PTRACE_GETREGS", err.(syscall.Errno))
	}
	return regs, nil
}

// SetRegisters writes the tracee's general-purpose registers via
// PTRACE_SETREGS.
func (t *Tracer) SetRegisters(regs sys.PtraceRegs) error {
	var err error
	t.execPtraceFunc(func() {
		err = sys.PtraceSetRegs(t.pid, &regs)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_SETREGS", err.(syscall.Errno))
	}
	return nil
}

// GetFPRegisters reads the tracee's x87/SSE floating point register set
// (the kernel's user_fpregs_struct, 512 bytes on both amd64 and 386)
// via PTRACE_GETFPREGS.
func (t *Tracer) GetFPRegisters() (FPRegs, error) {
	var regs FPRegs
	var err error
	t.execPtraceFunc(func() {
		err = ptraceGetFPRegs(t.pid, &regs)
	})
	if err != nil {
		return FPRegs{}, proc.NewSystemAPIError("PTRACE_GETFPREGS", err.(syscall.Errno))
	}
	return regs, nil
}

// SetFPRegisters writes the tracee's floating point register set via
// PTRACE_SETFPREGS.
func (t *Tracer) SetFPRegisters(regs FPRegs) error {
	var err error
	t.execPtraceFunc(func() {
		err = ptraceSetFPRegs(t.pid, &regs)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_SETFPREGS", err.(syscall.Errno))
	}
	return nil
}

// GetSignalInfo retrieves the siginfo_t for the signal that produced the
// tracee's current stop via PTRACE_GETSIGINFO.
func (t *Tracer) GetSignalInfo() (Siginfo, error) {
	var info Siginfo
	var err error
	t.execPtraceFunc(func() {
		info, err = ptraceGetSigInfo(t.pid)
	})
	if err != nil {
		return Siginfo{}, proc.NewSystemAPIError("PTRACE_GETSIGINFO", err.(syscall.Errno))
	}
	return info, nil
}

// SetSignalInfo installs a siginfo_t to be redelivered on resume via
// PTRACE_SETSIGINFO.
func (t *Tracer) SetSignalInfo(info Siginfo) error {
	var err error
	t.execPtraceFunc(func() {
		err = ptraceSetSigInfo(t.pid, info)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_SETSIGINFO", err.(syscall.Errno))
	}
	return nil
}

// ReadWord reads one machine word at addr via PTRACE_PEEKDATA.
func (t *Tracer) ReadWord(addr uintptr) (uintptr, error) {
	var word uintptr
	var err error
	t.execPtraceFunc(func() {
		word, err = ptracePeekData(t.pid, addr)
	})
	if err != nil {
		return 0, proc.NewSystemAPIError("PTRACE_PEEKDATA", err.(syscall.Errno))
	}
	return word, nil
}

// WriteWord writes one machine word at addr via PTRACE_POKEDATA.
func (t *Tracer) WriteWord(addr uintptr, word uintptr) error {
	var err error
	t.execPtraceFunc(func() {
		err = ptracePokeData(t.pid, addr, word)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_POKEDATA", err.(syscall.Errno))
	}
	return nil
}

// ReadUserWord reads one word from the tracee's USER area at offset via
// PTRACE_PEEKUSER.
func (t *Tracer) ReadUserWord(offset uintptr) (uintptr, error) {
	var word uintptr
	var err error
	t.execPtraceFunc(func() {
		word, err = ptracePeekUser(t.pid, offset)
	})
	if err != nil {
		return 0, proc.NewSystemAPIError("PTRACE_PEEKUSER", err.(syscall.Errno))
	}
	return word, nil
}

// WriteUserWord writes one word to the tracee's USER area at offset via
// PTRACE_POKEUSER.
func (t *Tracer) WriteUserWord(offset uintptr, word uintptr) error {
	var err error
	t.execPtraceFunc(func() {
		err = ptracePokeUser(t.pid, offset, word)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_POKEUSER", err.(syscall.Errno))
	}
	return nil
}

// ReadMemory implements proc.MemoryReader via process_vm_readv, falling
// back to word-at-a-time PEEKDATA when the bulk call fails (e.g. under a
// kernel/security policy that permits ptrace but not process_vm_readv).
func (t *Tracer) ReadMemory(out []byte, addr uint64) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	var n int
	var err error
	t.execPtraceFunc(func() {
		n, err = processVmRead(t.pid, uintptr(addr), out)
	})
	if err == nil {
		return n, nil
	}
	return t.readMemoryWordwise(out, addr)
}

func (t *Tracer) readMemoryWordwise(out []byte, addr uint64) (int, error) {
	const wordSize = 8
	read := 0
	for read < len(out) {
		word, err := t.ReadWord(uintptr(addr) + uintptr(read))
		if err != nil {
			if read > 0 {
				return read, nil
			}
			return 0, err
		}
		var buf [wordSize]byte
		nativeEndian.PutUint64(buf[:], uint64(word))
		n := copy(out[read:], buf[:])
		read += n
	}
	return read, nil
}

// WriteMemory implements proc.MemoryWriter via process_vm_writev, with
// the same wordwise fallback as ReadMemory.
func (t *Tracer) WriteMemory(addr uint64, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var n int
	var err error
	t.execPtraceFunc(func() {
		n, err = processVmWrite(t.pid, uintptr(addr), data)
	})
	if err == nil {
		return n, nil
	}
	return t.writeMemoryWordwise(data, addr)
}

func (t *Tracer) writeMemoryWordwise(data []byte, addr uint64) (int, error) {
	const wordSize = 8
	written := 0
	remaining := len(data)
	for remaining > 0 {
		off := uintptr(addr) + uintptr(written)
		if remaining >= wordSize {
			var buf [wordSize]byte
			copy(buf[:], data[written:written+wordSize])
			if err := t.WriteWord(off, uintptr(nativeEndian.Uint64(buf[:]))); err != nil {
				return written, err
			}
			written += wordSize
			remaining -= wordSize
			continue
		}
		orig, err := t.ReadWord(off)
		if err != nil {
			return written, err
		}
		var buf [wordSize]byte
		nativeEndian.PutUint64(buf[:], uint64(orig))
		copy(buf[:remaining], data[written:])
		if err := t.WriteWord(off, uintptr(nativeEndian.Uint64(buf[:]))); err != nil {
			return written, err
		}
		written += remaining
		remaining = 0
	}
	return written, nil
}
