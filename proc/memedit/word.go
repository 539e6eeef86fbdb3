package memedit

import "encoding/binary"

func wordFromBytes(b []byte) uintptr {
	return uintptr(binary.LittleEndian.Uint64(pad(b)))
}

func bytesFromWord(w uintptr) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(w))
	return b
}

func pad(b []byte) []byte {
	if len(b) >= 8 {
		return b
	}
	var out [8]byte
	copy(out[:], b)
	return out[:]
}
