// Package stopguard provides a scoped "ensure the tracee is stopped"
// resource. Go has no destructors, so the RAII idiom from the original
// C++ Debugger::RequireProcessStopped becomes an explicit Acquire/Release
// pair meant to be used with defer.
package stopguard

import (
	"syscall"

	"github.com/vantage-systems/proctrace/proc"
)

// tracer is the minimal surface stopguard needs from a tracer, so this
// package doesn't import proc/native and create a dependency cycle with
// packages native itself might want to use stopguard from.
type tracer interface {
	Process() proc.Process
	Stop() error
	Cont(sig syscall.Signal) error
}

// Guard is a non-copyable scoped stop. Acquire is its only constructor;
// Release is idempotent.
type Guard struct {
	t          tracer
	stoppedBy  bool
	released   bool
}

// Acquire calls t.Stop if t's tracee is not already stopped and records
// that it did so; it returns once Stop returns and does not wait for the
// tracee to reach the stopped state. Nesting is safe: an Acquire call
// while another Guard already holds the tracee stopped observes the already-stopped status
// and becomes a no-op Release later, exactly as spec.md describes
// (outer stops, inner no-ops, outer resumes on release).
func Acquire(t tracer) (*Guard, error) {
	st, err := t.Process().Status()
	if err != nil {
		return nil, err
	}
	g := &Guard{t: t}
	if !st.IsStopped() {
		if err := t.Stop(); err != nil {
			return nil, err
		}
		g.stoppedBy = true
	}
	return g, nil
}

// Release resumes the tracee if this Guard is the one that stopped it.
// Calling Release more than once is a no-op.
func (g *Guard) Release() error {
	if g.released {
		return nil
	}
	g.released = true
	if !g.stoppedBy {
		return nil
	}
	return g.t.Cont(0)
}
