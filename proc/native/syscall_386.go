//go:build linux && 386

package native

import (
	"syscall"

	"github.com/vantage-systems/proctrace/proc"
)

// maxSyscallArgs is the 386 int-0x80 register-argument count: ebx, ecx,
// edx, esi, edi, ebp. Unlike amd64, older 386 syscalls needing a 7th
// argument spilled it onto the stack, but no syscall in the Linux ABI
// this library targets needs more than six, so InjectSyscall rejects a
// 7th argument as a caller error rather than implementing the spill.
const maxSyscallArgs = 6

// InjectSyscall executes one system call inside the tracee by
// overwriting its current instruction with the two-byte "int $0x80"
// opcode (0xcd 0x80), setting up the 386 syscall ABI registers,
// single-stepping across it, reaping the resulting stop with wait4
// before issuing any further ptrace request, and restoring the original
// instruction bytes and register file.
func (t *Tracer) InjectSyscall(nr uint64, args ...uint64) (ret uint64, err error) {
	if len(args) > maxSyscallArgs {
		return 0, proc.NewArgumentError("InjectSyscall", "386 syscalls take at most 6 arguments")
	}

	savedRegs, err := t.GetRegisters()
	if err != nil {
		return 0, err
	}
	savedFP, fpErr := t.GetFPRegisters()

	pc := uintptr(savedRegs.Eip)
	origWord, err := t.ReadWord(pc)
	if err != nil {
		return 0, err
	}

	var patched [8]byte
	nativeEndian.PutUint64(patched[:], uint64(origWord))
	patched[0] = 0xcd
	patched[1] = 0x80
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
	call.Orig_eax = int32(nr)
	call.Eax = int32(nr)
	call.Eip = int32(pc)
	var regArgs [maxSyscallArgs]*int32
	regArgs[0], regArgs[1], regArgs[2] = &call.Ebx, &call.Ecx, &call.Edx
	regArgs[3], regArgs[4], regArgs[5] = &call.Esi, &call.Edi, &call.Ebp
	for i, a := range args {
		*regArgs[i] = int32(uint32(a))
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

	eax := int32(after.Eax)
	if eax < 0 && eax > -4096 {
		return 0, proc.NewSystemAPIError("injected syscall", syscall.Errno(-eax))
	}
	return uint64(uint32(eax)), nil
}
