package memedit

import (
	"context"
	"encoding/binary"
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/vantage-systems/proctrace/internal/config"
	"github.com/vantage-systems/proctrace/proc"
	"github.com/vantage-systems/proctrace/proc/native"
)

// newFileEditor builds an Editor backed by a real temp file instead of
// /proc/<pid>/mem, in pseudofile write mode so tests exercise Read/Write
// and the generic typed helpers without needing a live tracee.
func newFileEditor(t *testing.T) *Editor {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "memedit")
	require.NoError(t, err)
	require.NoError(t, f.Truncate(4096))
	fd := int(f.Fd())
	// Editor.Close calls unix.Close(fd); keep f open until the test ends
	// so the *os.File finalizer doesn't race a second close.
	t.Cleanup(func() { _ = f.Close() })

	dup, err := unix.Dup(fd)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.WriteMode = config.WriteModePseudoFile
	return &Editor{tracer: nil, fd: dup, mode: ReadWrite, cfg: cfg}
}

func TestReadWriteRoundTrip(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()

	data := []byte("hello, tracee")
	n, err := e.Write(0x100, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	out := make([]byte, len(data))
	n, err = e.Read(out, 0x100)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, out)
}

func TestReadOnlyRejectsWrite(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()
	e.mode = ReadOnly

	_, err := e.Write(0, []byte{1})
	require.Error(t, err)
}

func TestPODRoundTrip(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()

	type point struct{ X, Y int64 }
	want := point{X: 42, Y: -7}

	require.NoError(t, WritePOD(e, 0x200, want))
	got, err := ReadPOD[point](e, 0x200)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestSliceRoundTrip(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()

	want := []int32{1, 2, 3, 4, 5}
	require.NoError(t, WriteSlice(e, 0x300, want))
	got, err := ReadSlice[int32](e, 0x300, len(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestCStringRoundTrip(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()

	require.NoError(t, WriteCString(e, 0x400, "proctrace"))
	got, err := ReadCString(e, 0x400, 64)
	require.NoError(t, err)
	require.Equal(t, "proctrace", got)
}

// wordTracer is a fake tracer backed by a plain byte buffer, standing in
// for a native.Tracer's word-oriented PEEKDATA/POKEDATA surface so
// writePortable's word-write loop can be exercised deterministically and
// without ptrace permissions.
type wordTracer struct {
	mem     []byte
	stopped bool
}

func newWordTracer(size int) *wordTracer {
	return &wordTracer{mem: make([]byte, size), stopped: true}
}

// Process returns a handle on the test binary's own live process, since
// stopguard.Acquire needs a real /proc/<pid>/stat entry to read a State
// from. Stop/Cont deliberately never touch the real process (sending it
// a real SIGSTOP would freeze the test itself); they only track the
// fake tracee's believed stop state.
func (w *wordTracer) Process() proc.Process {
	p, err := proc.New(proc.PID(os.Getpid()))
	if err != nil {
		panic(err)
	}
	return p
}
func (w *wordTracer) Stop() error               { w.stopped = true; return nil }
func (w *wordTracer) Cont(syscall.Signal) error { w.stopped = false; return nil }
func (w *wordTracer) ReadWord(addr uintptr) (uintptr, error) {
	return uintptr(binary.LittleEndian.Uint64(w.mem[addr : addr+8])), nil
}
func (w *wordTracer) WriteWord(addr uintptr, word uintptr) error {
	binary.LittleEndian.PutUint64(w.mem[addr:addr+8], uint64(word))
	return nil
}

// writePortableDirect drives Editor.Write in portable mode against a
// wordTracer, exercising the same writePortable path a real ptrace
// tracer would go through, including stopguard.Acquire/Release.
func writePortableDirect(w *wordTracer, addr uint64, data []byte) (int, error) {
	e := &Editor{tracer: w, mode: ReadWrite, cfg: config.Config{WriteMode: config.WriteModePortable}}
	return e.Write(addr, data)
}

func TestWritePortableWordAligned(t *testing.T) {
	w := newWordTracer(64)
	n, err := writePortableDirect(w, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, w.mem[0:8])
}

// TestWritePortablePartialTail covers every tail length from 1 up to
// word_size-1 bytes, the case the original Ethon MemoryEditor's portable
// write path mishandled by incrementing instead of decrementing its
// remaining-byte count.
func TestWritePortablePartialTail(t *testing.T) {
	for tail := 1; tail < 8; tail++ {
		w := newWordTracer(64)
		// Seed the destination word with a recognizable pattern so a
		// read-modify-write that clobbers untouched tail bytes is caught.
		for i := range w.mem[:8] {
			w.mem[i] = 0xaa
		}
		data := make([]byte, tail)
		for i := range data {
			data[i] = byte(0x10 + i)
		}
		n, err := writePortableDirect(w, 0, data)
		require.NoError(t, err, "tail=%d", tail)
		require.Equal(t, tail, n, "tail=%d", tail)
		require.Equal(t, data, w.mem[:tail], "tail=%d: written bytes", tail)
		for i := tail; i < 8; i++ {
			require.Equal(t, byte(0xaa), w.mem[i], "tail=%d: byte %d must be preserved", tail, i)
		}
	}
}

func TestWritePortableMultiWordWithTail(t *testing.T) {
	w := newWordTracer(64)
	data := make([]byte, 19) // two full words plus a 3-byte tail
	for i := range data {
		data[i] = byte(i + 1)
	}
	n, err := writePortableDirect(w, 0, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, w.mem[:len(data)])
}

// TestPortableWriteThroughRealTracer exercises writePortable end to end
// against a live ptrace'd tracee: attach, hold it stopped via
// proc/stopguard, and poke a partial-tail write through
// PTRACE_POKEDATA/PEEKDATA. Skipped under -short since it requires
// ptrace permissions, matching proc/native's own integration test.
func TestPortableWriteThroughRealTracer(t *testing.T) {
	if testing.Short() {
		t.Skip("requires ptrace permissions")
	}

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	target, err := proc.New(proc.PID(cmd.Process.Pid))
	require.NoError(t, err)

	tracer, err := native.Attach(context.Background(), target)
	require.NoError(t, err)
	defer tracer.Detach(false)

	regions, err := target.RegionList()
	require.NoError(t, err)
	var addr uint64
	found := false
	for _, r := range regions {
		if r.Perms.Writable() && r.Size() >= 16 {
			addr = r.Start
			found = true
			break
		}
	}
	require.True(t, found, "expected at least one writable mapped region")

	e, err := New(tracer, ReadWrite, config.Config{WriteMode: config.WriteModePortable})
	require.NoError(t, err)
	defer e.Close()

	orig := make([]byte, 8)
	_, err = e.Read(orig, addr)
	require.NoError(t, err)

	tail := []byte{0xde, 0xad, 0xbe}
	n, err := e.Write(addr, tail)
	require.NoError(t, err)
	require.Equal(t, len(tail), n)

	got := make([]byte, 8)
	_, err = e.Read(got, addr)
	require.NoError(t, err)
	require.Equal(t, tail, got[:len(tail)])
	require.Equal(t, orig[len(tail):], got[len(tail):], "bytes beyond the tail must be untouched")

	_, err = e.Write(addr, orig)
	require.NoError(t, err)
}

func TestDupProducesIndependentDescriptor(t *testing.T) {
	e := newFileEditor(t)
	defer e.Close()

	require.NoError(t, WriteCString(e, 0, "dup-test"))

	dup, err := e.Dup()
	require.NoError(t, err)
	defer dup.Close()

	got, err := ReadCString(dup, 0, 64)
	require.NoError(t, err)
	require.Equal(t, "dup-test", got)
}
