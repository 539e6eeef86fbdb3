//go:build linux && amd64

package native

import (
	"syscall"

	"github.com/vantage-systems/proctrace/proc"
)

// maxSyscallArgs is the amd64 System V register-argument count: rdi,
// rsi, rdx, r10, r8, r9. A syscall needing more arguments than this
// does not exist in the Linux amd64 ABI, so more than six is always a
// caller error, not something to spill onto the stack.
const maxSyscallArgs = 6

// InjectSyscall executes one system call inside the tracee by
// overwriting its current instruction with the two-byte "syscall"
// opcode (0x0f 0x05), setting up the amd64 syscall ABI registers,
// single-stepping across it, reaping the resulting stop with wait4
// before issuing any further ptrace request, and restoring both the
// original instruction bytes and the tracee's full register file before
// returning -- the tracee resumes exactly where it left off.
func (t *Tracer) InjectSyscall(nr uint64, args ...uint64) (ret uint64, err error) {
	if len(args) > maxSyscallArgs {
		return 0, proc.NewArgumentError("InjectSyscall", "amd64 syscalls take at most 6 arguments")
	}

	savedRegs, err := t.GetRegisters()
	if err != nil {
		return 0, err
	}
	savedFP, fpErr := t.GetFPRegisters()

	pc := uintptr(savedRegs.Rip)
	origWord, err := t.ReadWord(pc)
	if err != nil {
		return 0, err
	}

	var patched [8]byte
	nativeEndian.PutUint64(patched[:], uint64(origWord))
	patched[0] = 0x0f
	patched[1] = 0x05
	if err := t.WriteWord(pc, uintptr(nativeEndian.Uint64(patched[:]))); err != nil {
		return 0, err
	}
	restoreCode := func() {
		_ = t.WriteWord(pc, origWord)
	}
	restoreRegs := func() {
		_ = t.SetRegisters(savedRegs)
		if fpErr == nil {
			_ = t.SetFPRegisters(savedFP)
		}
	}

	call := savedRegs
	call.Orig_rax = nr
	call.Rax = nr
	call.Rip = uint64(pc)
	var regArgs [maxSyscallArgs]*uint64
	regArgs[0], regArgs[1], regArgs[2] = &call.Rdi, &call.Rsi, &call.Rdx
	regArgs[3], regArgs[4], regArgs[5] = &call.R10, &call.R8, &call.R9
	for i, a := range args {
		*regArgs[i] = a
	}

	if err := t.SetRegisters(call); err != nil {
		restoreCode()
		return 0, err
	}

	if err := t.SingleStep(); err != nil {
		restoreCode()
		restoreRegs()
		return 0, err
	}
	if err := t.waitPtraceStop(); err != nil {
		restoreCode()
		restoreRegs()
		return 0, err
	}

	after, err := t.GetRegisters()
	restoreCode()
	restoreRegs()
	if err != nil {
		return 0, err
	}

	rax := int64(after.Rax)
	if rax < 0 && rax > -4096 {
		return 0, proc.NewSystemAPIError("injected syscall", syscall.Errno(-rax))
	}
	return after.Rax, nil
}
