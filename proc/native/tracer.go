// Package native implements the Linux ptrace(2) backend: attach/detach,
// execution control, word/register/signal-info I/O, and syscall
// injection, all funneled through a single OS thread per tracee as the
// kernel requires.
package native

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/vantage-systems/proctrace/internal/config"
	"github.com/vantage-systems/proctrace/internal/logflags"
	"github.com/vantage-systems/proctrace/proc"
)

// Tracer controls one attached tracee. All ptrace(2) calls for its pid
// are issued from a single goroutine locked to its OS thread via
// runtime.LockOSThread, because the kernel scopes tracer identity to
// the calling thread, not the calling process.
type Tracer struct {
	process proc.Process
	pid     int
	session string

	log *logrus.Entry

	ptraceChan     chan func()
	ptraceDoneChan chan struct{}

	runWG      sync.WaitGroup
	shouldStop chan struct{}
	stopped    bool
	mu         sync.Mutex
}

// Attach ptrace-attaches to an existing process and blocks until the
// resulting group-stop is observed. ctx is used only while attaching: it
// bounds the retry backoff and is checked before the initial wait4. It
// does not reach the run-loop, which stops only when Detach is called.
// retry is optional; omitting it selects config.Default().AttachRetry.
func Attach(ctx context.Context, target proc.Process, retry ...config.AttachRetry) (*Tracer, error) {
	pid := int(target.PID())
	session := uuid.NewString()
	log := logflags.TracerLogger().WithField("session", session).WithField("pid", pid)

	r := config.Default().AttachRetry
	if len(retry) > 0 {
		r = retry[0]
	}

	t := &Tracer{
		process:        target,
		pid:            pid,
		session:        session,
		log:            log,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan struct{}),
		shouldStop:     make(chan struct{}),
	}

	var attachErr error
	initDone := make(chan struct{})
	go t.handlePtraceFuncs(func() {
		attachErr = attachAndWait(ctx, pid, log, r)
		close(initDone)
	})
	<-initDone

	if attachErr != nil {
		close(t.shouldStop)
		return nil, attachErr
	}
	log.Debug("attached")
	return t, nil
}

// attachAndWait issues PTRACE_ATTACH and waits for the resulting SIGSTOP,
// retrying the whole attach-and-wait sequence through an exponential
// backoff when it fails on a transient errno (EINTR while waiting, or
// ESRCH/EAGAIN raised by PTRACE_ATTACH itself against a process still
// settling out of a fork) -- the teacher's own wait() loop retries this
// transient case by hand with a fixed sleep; here it is formalized with
// a real backoff policy bounded by retry.MaxElapsed.
func attachAndWait(ctx context.Context, pid int, log *logrus.Entry, retry config.AttachRetry) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retry.InitialInterval
	bo.MaxElapsedTime = retry.MaxElapsed
	bkoff := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), 5)

	attempt := 0
	op := func() error {
		attempt++
		if err := ptraceAttach(pid); err != nil {
			if isTransientErrno(err) {
				log.WithField("attempt", attempt).WithField("errno", err).Debug("PTRACE_ATTACH transient failure, retrying")
				return err
			}
			return backoff.Permanent(proc.NewSystemAPIError("PTRACE_ATTACH", err.(syscall.Errno)))
		}
		if err := waitForStop(ctx, pid, log); err != nil {
			if se, ok := err.(*proc.SystemAPIError); ok && isTransientErrno(se.Errno) {
				log.WithField("attempt", attempt).Debug("initial wait4 transient failure, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(op, bkoff); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return pe.Err
		}
		return err
	}
	return nil
}

// isTransientErrno reports whether err represents a transient ptrace/wait
// failure worth retrying rather than surfacing immediately.
func isTransientErrno(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EINTR || errno == syscall.EAGAIN || errno == syscall.ESRCH
}

// handlePtraceFuncs is the body of the dedicated ptrace goroutine. It
// locks itself to its OS thread for its entire lifetime and executes
// every function sent to ptraceChan on that thread, replying on
// ptraceDoneChan; init runs first, before the dispatch loop starts, on
// the same locked thread.
func (t *Tracer) handlePtraceFuncs(init func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	init()

	for {
		fn, ok := <-t.ptraceChan
		if !ok {
			return
		}
		fn()
		t.ptraceDoneChan <- struct{}{}
	}
}

// execPtraceFunc runs fn on the tracer's dedicated OS thread and blocks
// until it completes. Every ptrace(2) call in this package must be
// wrapped this way.
func (t *Tracer) execPtraceFunc(fn func()) {
	t.ptraceChan <- fn
	<-t.ptraceDoneChan
}

// Process returns the underlying process handle.
func (t *Tracer) Process() proc.Process { return t.process }

// PID returns the tracee's pid.
func (t *Tracer) PID() int { return t.pid }

// Detach stops the run-loop goroutine (if started), issues
// PTRACE_DETACH (PTRACE_KILL when kill is true), and joins the run-loop
// worker before returning -- unlike the original's leaked detach thread,
// this always joins, resolving spec's open question in favor of clean
// shutdown. Calling Detach again after it has run is a no-op that
// returns nil.
func (t *Tracer) Detach(kill bool) error {
	t.mu.Lock()
	select {
	case <-t.shouldStop:
		t.mu.Unlock()
		return nil
	default:
		close(t.shouldStop)
	}
	t.mu.Unlock()

	t.runWG.Wait()

	var detachErr error
	t.execPtraceFunc(func() {
		if kill {
			detachErr = ptraceKill(t.pid)
			return
		}
		detachErr = ptraceDetach(t.pid, 0)
	})
	close(t.ptraceChan)

	if detachErr != nil {
		if errno, ok := detachErr.(syscall.Errno); ok {
			return proc.NewSystemAPIError("PTRACE_DETACH", errno)
		}
		return proc.NewUnexpectedError("Detach", detachErr.Error())
	}
	t.log.Debug("detached")
	return nil
}

// Kill sends SIGKILL to the tracee and detaches without resuming it.
func (t *Tracer) Kill() error { return t.Detach(true) }

// Stop requests a group-stop by sending SIGSTOP (PTRACE_INTERRUPT
// is Linux-only ptrace-seize territory; for classic PTRACE_ATTACH
// sessions a SIGSTOP is the portable equivalent). It returns once the
// signal is sent and does not wait for the tracee to stop.
func (t *Tracer) Stop() error {
	return t.SendSignal(unix.SIGSTOP)
}

// Cont resumes the tracee with PTRACE_CONT, delivering sig (0 for none).
func (t *Tracer) Cont(sig syscall.Signal) error {
	var err error
	t.execPtraceFunc(func() {
		err = ptraceCont(t.pid, int(sig))
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_CONT", err.(syscall.Errno))
	}
	return nil
}

// ContinueExecution is an alias for Cont(0), the common case.
func (t *Tracer) ContinueExecution() error { return t.Cont(0) }

// SingleStep resumes the tracee for exactly one instruction.
func (t *Tracer) SingleStep() error {
	var err error
	t.execPtraceFunc(func() {
		err = ptraceSingleStep(t.pid, 0)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_SINGLESTEP", err.(syscall.Errno))
	}
	return nil
}

// StepSyscall resumes the tracee until entry or exit of the next system
// call (PTRACE_SYSCALL semantics -- toggles on each stop).
func (t *Tracer) StepSyscall() error {
	var err error
	t.execPtraceFunc(func() {
		err = ptraceSyscall(t.pid, 0)
	})
	if err != nil {
		return proc.NewSystemAPIError("PTRACE_SYSCALL", err.(syscall.Errno))
	}
	return nil
}

// SendSignal delivers sig to the tracee directly via kill(2), the
// portable way to induce a stop on an attached-but-not-seized tracee.
func (t *Tracer) SendSignal(sig syscall.Signal) error {
	if err := unix.Kill(t.pid, sig); err != nil {
		return proc.NewSystemAPIError(fmt.Sprintf("kill(%s)", sig), err.(syscall.Errno))
	}
	return nil
}

// waitPtraceStop blocks on the tracer's own OS thread until wait4
// reports the tracee stopped again after a resume request (PTRACE_CONT,
// PTRACE_SINGLESTEP, or PTRACE_SYSCALL). The kernel requires the tracer
// to reap this stop before issuing its next ptrace request against the
// tracee; skipping it, as a bare resume-then-GETREGS sequence does,
// races the tracee's transition out of the stopped state and makes the
// following request fail ESRCH or observe pre-resume state.
func (t *Tracer) waitPtraceStop() error {
	var status unix.WaitStatus
	var err error
	t.execPtraceFunc(func() {
		_, err = unix.Wait4(t.pid, &status, 0, nil)
	})
	if err != nil {
		return proc.NewSystemAPIError("wait4", err.(syscall.Errno))
	}
	if status.Exited() {
		return proc.NewUnexpectedError("waitPtraceStop", fmt.Sprintf("tracee exited before restopping, code %d", status.ExitStatus()))
	}
	if !status.Stopped() {
		return proc.NewUnexpectedError("waitPtraceStop", "wait4 returned neither stopped nor exited status")
	}
	return nil
}

// waitForStop blocks on a single wait4 call until the tracee reports a
// ptrace-stop. A transient EINTR is surfaced as a SystemAPIError rather
// than retried here -- attachAndWait's backoff policy is what retries
// the whole attach-and-wait sequence, so this stays a single blocking
// call rather than its own retry loop.
func waitForStop(ctx context.Context, pid int, log *logrus.Entry) error {
	select {
	case <-ctx.Done():
		return proc.NewUnexpectedError("waitForStop", "context canceled before initial stop")
	default:
	}

	var status unix.WaitStatus
	_, err := unix.Wait4(pid, &status, 0, nil)
	if err != nil {
		return proc.NewSystemAPIError("wait4", err.(syscall.Errno))
	}
	if status.Stopped() {
		log.WithField("signal", status.StopSignal()).Debug("initial stop observed")
		return nil
	}
	if status.Exited() {
		return proc.NewUnexpectedError("waitForStop", fmt.Sprintf("process exited before stopping, code %d", status.ExitStatus()))
	}
	return proc.NewUnexpectedError("waitForStop", "wait4 returned neither stopped nor exited status")
}
