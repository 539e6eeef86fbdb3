// Package tracetest launches a small cooperating fixture binary for
// tracer/memedit/scanner integration tests, optionally with its stdio
// attached to a pty, mirroring the teacher's own
// Launch()/attachProcessToTTY. The pty is not made the fixture's
// controlling terminal.
package tracetest

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"

	"github.com/vantage-systems/proctrace/proc"
)

// Fixture is a running instance of the looper test binary.
type Fixture struct {
	cmd  *exec.Cmd
	tty  *os.File
	Proc proc.Process
}

// LooperPath returns the path to the prebuilt fixture binary. Tests
// build this binary out-of-band (go build ./internal/tracetest/testdata/looper)
// before running the integration suite; it is not built by this
// package at test time.
func LooperPath() string {
	if p := os.Getenv("PROCTRACE_LOOPER_BIN"); p != "" {
		return p
	}
	return "internal/tracetest/testdata/looper/looper"
}

// Launch starts the fixture binary. If withPTY is true, its stdio is
// attached to a newly allocated pty, the way delve's native.Launch does
// for the process it debugs.
func Launch(withPTY bool) (*Fixture, error) {
	cmd := exec.Command(LooperPath())

	f := &Fixture{cmd: cmd}

	if withPTY {
		ptmx, tty, err := pty.Open()
		if err != nil {
			return nil, fmt.Errorf("opening pty: %w", err)
		}
		cmd.Stdin = tty
		cmd.Stdout = tty
		cmd.Stderr = tty
		f.tty = ptmx
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting fixture: %w", err)
	}

	p, err := proc.New(proc.PID(cmd.Process.Pid))
	if err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	f.Proc = p
	return f, nil
}

// IsForeground reports whether the fixture was launched withPTY and the
// pty master it holds is a terminal. It does not inspect the pty's
// foreground process group.
func (f *Fixture) IsForeground() bool {
	if f.tty == nil {
		return false
	}
	return isatty.IsTerminal(f.tty.Fd())
}

// Kill terminates the fixture and releases its pty, if any.
func (f *Fixture) Kill() error {
	if f.tty != nil {
		_ = f.tty.Close()
	}
	if f.cmd.Process == nil {
		return nil
	}
	return f.cmd.Process.Kill()
}
