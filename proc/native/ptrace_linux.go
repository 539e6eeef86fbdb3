package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceAttach executes the sys.PtraceAttach call.
func ptraceAttach(pid int) error {
	return sys.PtraceAttach(pid)
}

// ptraceDetach calls ptrace(PTRACE_DETACH).
func ptraceDetach(tid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceKill calls ptrace(PTRACE_KILL). Deprecated by the kernel in
// favor of tgkill, but still the direct analogue of the source's
// Debugger::kill.
func ptraceKill(tid int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_KILL, uintptr(tid), 0, 0, 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT.
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP.
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSyscall executes ptrace PTRACE_SYSCALL, stopping at the next
// system call entry or exit.
func ptraceSyscall(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SYSCALL), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptracePeekData reads one machine word at addr in the tracee's address
// space via PTRACE_PEEKDATA. Because -1 is both a valid data value and
// the raw syscall failure sentinel, the caller must reset errno and
// check it, which sys.PtracePeekData already does internally.
func ptracePeekData(tid int, addr uintptr) (word uintptr, err error) {
	var data [8]byte
	n, err := sys.PtracePeekData(tid, addr, data[:])
	if err != nil {
		return 0, err
	}
	if n != len(data) {
		return 0, syscall.EIO
	}
	return uintptr(nativeEndian.Uint64(data[:])), nil
}

// ptracePokeData writes one machine word at addr via PTRACE_POKEDATA.
func ptracePokeData(tid int, addr uintptr, word uintptr) error {
	var data [8]byte
	nativeEndian.PutUint64(data[:], uint64(word))
	n, err := sys.PtracePokeData(tid, addr, data[:])
	if err != nil {
		return err
	}
	if n != len(data) {
		return syscall.EIO
	}
	return nil
}

// ptracePeekUser reads one word from the tracee's USER area (register
// file / debug registers) at offset via PTRACE_PEEKUSER.
func ptracePeekUser(tid int, offset uintptr) (uintptr, error) {
	word, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKUSR, uintptr(tid), offset, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return word, nil
}

// ptracePokeUser writes one word to the tracee's USER area via
// PTRACE_POKEUSER.
func ptracePokeUser(tid int, offset uintptr, word uintptr) error {
	_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_POKEUSR, uintptr(tid), offset, word, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// FPRegs is the kernel's user_fpregs_struct verbatim -- 512 bytes of
// x87/SSE state on both amd64 and 386, transferred as an opaque blob
// since this library never needs to interpret individual fields.
type FPRegs struct {
	raw [512]byte
}

// Bytes exposes the raw fxsave-format register image.
func (f *FPRegs) Bytes() []byte { return f.raw[:] }

// ptraceGetFPRegs retrieves the tracee's floating point registers via
// PTRACE_GETFPREGS.
func ptraceGetFPRegs(tid int, out *FPRegs) error {
	_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETFPREGS, uintptr(tid), 0, uintptr(unsafe.Pointer(&out.raw[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// ptraceSetFPRegs installs floating point registers via PTRACE_SETFPREGS.
func ptraceSetFPRegs(tid int, in *FPRegs) error {
	_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETFPREGS, uintptr(tid), 0, uintptr(unsafe.Pointer(&in.raw[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// ptraceGetSigInfo retrieves the siginfo_t describing the signal that
// caused the current stop via PTRACE_GETSIGINFO.
func ptraceGetSigInfo(tid int) (Siginfo, error) {
	var raw [siginfoSize]byte
	_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(tid), 0, uintptr(unsafe.Pointer(&raw[0])), 0, 0)
	if errno != 0 {
		return Siginfo{}, errno
	}
	return decodeSiginfo(raw), nil
}

// ptraceSetSigInfo installs a siginfo_t to be redelivered on resume via
// PTRACE_SETSIGINFO.
func ptraceSetSigInfo(tid int, info Siginfo) error {
	raw := info.encode()
	_, _, errno := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SETSIGINFO, uintptr(tid), 0, uintptr(unsafe.Pointer(&raw[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for
// the base field instead of *byte so it can name addresses that belong
// to the target process rather than this one.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

// processVmRead calls process_vm_readv, the bulk-transfer path that
// ReadMemory tries first for every non-empty read.
func processVmRead(tid int, addr uintptr, data []byte) (int, error) {
	var localIov sys.Iovec
	localIov.Base = &data[0]
	localIov.SetLen(len(data))
	remoteIov := remoteIovec{base: addr, len: uintptr(len(data))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(tid), uintptr(unsafe.Pointer(&localIov)), 1, uintptr(unsafe.Pointer(&remoteIov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}

// processVmWrite calls process_vm_writev.
func processVmWrite(tid int, addr uintptr, data []byte) (int, error) {
	var localIov sys.Iovec
	localIov.Base = &data[0]
	localIov.SetLen(len(data))
	remoteIov := remoteIovec{base: addr, len: uintptr(len(data))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_WRITEV, uintptr(tid), uintptr(unsafe.Pointer(&localIov)), 1, uintptr(unsafe.Pointer(&remoteIov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
