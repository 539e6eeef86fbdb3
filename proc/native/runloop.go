package native

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval bounds how long the run-loop sleeps between WNOHANG wait4
// polls when the tracee has not changed state; it trades a small amount
// of stop-detection latency for the ability to observe t.shouldStop
// without a call that could otherwise block forever.
const pollInterval = 2 * time.Millisecond

// StopCallback is invoked on every ptrace-stop the run-loop observes. It
// returns true to keep the tracee stopped (the caller will resume it
// explicitly, e.g. after inspecting registers), or false to have the
// run-loop resume it immediately with signal sig re-delivered (a
// SIGTRAP is not re-delivered; the tracee resumes with no signal).
type StopCallback func(t *Tracer, sig syscall.Signal) (keepStopped bool)

// DefaultStopCallback implements the documented default policy: resume
// execution on every stop except a SIGTRAP, which is left stopped for
// the caller to inspect (a breakpoint or single-step trap that RunLoop
// resumed on its own would never be observable). RunLoop uses this when
// started with a nil onStop.
func DefaultStopCallback(t *Tracer, sig syscall.Signal) (keepStopped bool) {
	return sig == syscall.SIGTRAP
}

// RunLoop starts the background wait4 loop for this tracee on its own
// goroutine, invoking onStop for every reported stop and resuming the
// tracee by default except on SIGTRAP (a bare PTRACE_CONT would swallow
// the trap that produced the stop). The loop exits when Detach closes
// t.shouldStop; Detach joins this goroutine before returning.
func (t *Tracer) RunLoop(onStop StopCallback) {
	if onStop == nil {
		onStop = DefaultStopCallback
	}
	t.runWG.Add(1)
	go func() {
		defer t.runWG.Done()
		t.runLoopBody(onStop)
	}()
}

func (t *Tracer) runLoopBody(onStop StopCallback) {
	for {
		select {
		case <-t.shouldStop:
			return
		default:
		}

		var status unix.WaitStatus
		var wpid int
		var waitErr error
		t.execPtraceFunc(func() {
			wpid, waitErr = unix.Wait4(t.pid, &status, unix.WNOHANG, nil)
		})

		if waitErr == unix.EINTR {
			continue
		}
		if waitErr != nil {
			t.log.WithError(waitErr).Warn("run-loop wait4 failed")
			return
		}
		if wpid == 0 {
			select {
			case <-t.shouldStop:
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if status.Exited() {
			t.log.WithField("code", status.ExitStatus()).Debug("tracee exited")
			return
		}
		if !status.Stopped() {
			continue
		}

		sig := status.StopSignal()
		keepStopped := onStop(t, sig)
		if keepStopped {
			t.mu.Lock()
			t.stopped = true
			t.mu.Unlock()
			continue
		}
		t.mu.Lock()
		t.stopped = false
		t.mu.Unlock()

		resumeSig := sig
		if sig == syscall.SIGTRAP {
			resumeSig = 0
		}
		if err := t.Cont(resumeSig); err != nil {
			t.log.WithError(err).Warn("run-loop failed to resume tracee")
			return
		}
	}
}

// Stopped reports whether the run-loop currently believes the tracee is
// ptrace-stopped and being held there by a callback's true return.
func (t *Tracer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
