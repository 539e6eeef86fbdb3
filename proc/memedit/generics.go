package memedit

import (
	"unsafe"

	"github.com/vantage-systems/proctrace/proc"
)

// ReadPOD reads one fixed-size value of type T from addr. T must be a
// plain-old-data type with no pointers (an int, float, fixed-size
// struct of such fields) -- this is the Go-generics replacement for the
// original library's C++ SFINAE enable_if<is_pod<T>> helpers.
func ReadPOD[T any](e *Editor, addr uint64) (T, error) {
	var v T
	size := int(unsafe.Sizeof(v))
	buf := make([]byte, size)
	n, err := e.Read(buf, addr)
	if err != nil {
		return v, err
	}
	if n != size {
		return v, proc.NewUnexpectedError("ReadPOD", "short read")
	}
	v = *(*T)(unsafe.Pointer(&buf[0]))
	return v, nil
}

// WritePOD writes one fixed-size value of type T at addr.
func WritePOD[T any](e *Editor, addr uint64, v T) error {
	size := int(unsafe.Sizeof(v))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	n, err := e.Write(addr, buf)
	if err != nil {
		return err
	}
	if n != size {
		return proc.NewUnexpectedError("WritePOD", "short write")
	}
	return nil
}

// ReadSlice reads count contiguous values of type T starting at addr.
func ReadSlice[T any](e *Editor, addr uint64, count int) ([]T, error) {
	if count < 0 {
		return nil, proc.NewArgumentError("ReadSlice", "count must be non-negative")
	}
	out := make([]T, count)
	if count == 0 {
		return out, nil
	}
	elemSize := int(unsafe.Sizeof(out[0]))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), elemSize*count)
	n, err := e.Read(buf, addr)
	if err != nil {
		return nil, err
	}
	if n != len(buf) {
		return nil, proc.NewUnexpectedError("ReadSlice", "short read")
	}
	return out, nil
}

// WriteSlice writes values contiguously starting at addr.
func WriteSlice[T any](e *Editor, addr uint64, values []T) error {
	if len(values) == 0 {
		return nil
	}
	elemSize := int(unsafe.Sizeof(values[0]))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), elemSize*len(values))
	n, err := e.Write(addr, buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return proc.NewUnexpectedError("WriteSlice", "short write")
	}
	return nil
}

// ReadCString reads a NUL-terminated byte string starting at addr,
// reading in 64-byte chunks until it finds the terminator, reaches
// maxLen bytes, or gets a short read.
func ReadCString(e *Editor, addr uint64, maxLen int) (string, error) {
	const chunk = 64
	var out []byte
	for len(out) < maxLen {
		want := chunk
		if len(out)+want > maxLen {
			want = maxLen - len(out)
		}
		buf := make([]byte, want)
		n, err := e.Read(buf, addr+uint64(len(out)))
		if err != nil {
			return "", err
		}
		buf = buf[:n]
		if i := indexByte(buf, 0); i >= 0 {
			out = append(out, buf[:i]...)
			return string(out), nil
		}
		out = append(out, buf...)
		if n < want {
			break
		}
	}
	return "", proc.NewUnexpectedError("ReadCString", "no NUL terminator within maxLen")
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// WriteCString writes s followed by a NUL terminator at addr.
func WriteCString(e *Editor, addr uint64, s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	_, err := e.Write(addr, buf)
	return err
}
