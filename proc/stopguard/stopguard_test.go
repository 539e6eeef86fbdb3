package stopguard

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-systems/proctrace/proc"
)

// fakeTracer records Stop/Cont calls without touching any real process,
// reporting the current process's real status (always running for the
// test binary) so Acquire always takes the "was not stopped" branch.
type fakeTracer struct {
	stopCalls int
	contCalls int
}

func (f *fakeTracer) Process() proc.Process { return proc.Current() }
func (f *fakeTracer) Stop() error           { f.stopCalls++; return nil }
func (f *fakeTracer) Cont(sig syscall.Signal) error {
	f.contCalls++
	return nil
}

func TestAcquireStopsRunningTracee(t *testing.T) {
	ft := &fakeTracer{}
	g, err := Acquire(ft)
	require.NoError(t, err)
	require.Equal(t, 1, ft.stopCalls)

	require.NoError(t, g.Release())
	require.Equal(t, 1, ft.contCalls)
}

func TestReleaseIsIdempotent(t *testing.T) {
	ft := &fakeTracer{}
	g, err := Acquire(ft)
	require.NoError(t, err)

	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	require.Equal(t, 1, ft.contCalls, "a second Release must not resume the tracee twice")
}
