package native

import "encoding/binary"

// siginfoSize matches the kernel's siginfo_t on linux/amd64 and
// linux/386 (128 bytes on both, despite the differing word size,
// because the kernel pads the union to a fixed size for ptrace
// transfer).
const siginfoSize = 128

// Siginfo is the raw siginfo_t describing the signal that produced the
// tracee's current stop. Only the fixed leading fields (signal number,
// errno, code) are decoded; the remainder is preserved verbatim so a
// GetSignalInfo/SetSignalInfo round-trip never loses union data this
// package doesn't understand.
type Siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	raw   [siginfoSize]byte
}

func decodeSiginfo(raw [siginfoSize]byte) Siginfo {
	return Siginfo{
		Signo: int32(binary.LittleEndian.Uint32(raw[0:4])),
		Errno: int32(binary.LittleEndian.Uint32(raw[4:8])),
		Code:  int32(binary.LittleEndian.Uint32(raw[8:12])),
		raw:   raw,
	}
}

func (s Siginfo) encode() [siginfoSize]byte {
	raw := s.raw
	binary.LittleEndian.PutUint32(raw[0:4], uint32(s.Signo))
	binary.LittleEndian.PutUint32(raw[4:8], uint32(s.Errno))
	binary.LittleEndian.PutUint32(raw[8:12], uint32(s.Code))
	return raw
}
