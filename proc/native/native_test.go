package native

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vantage-systems/proctrace/proc"
)

// TestAttachInjectDetach exercises the attach-inject-detach end-to-end
// path: attach to a fresh child, inject a getpid(2) syscall and observe
// the correct return value, check that the registers are restored, then
// detach cleanly.
// Skipped under -short because it requires ptrace permissions
// (CAP_SYS_PTRACE / running as root, and a permissive
// /proc/sys/kernel/yama/ptrace_scope) that CI sandboxes may not grant.
func TestAttachInjectDetach(t *testing.T) {
	if testing.Short() {
		t.Skip("requires ptrace permissions")
	}

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	defer cmd.Process.Kill()

	target, err := proc.New(proc.PID(cmd.Process.Pid))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tracer, err := Attach(ctx, target)
	require.NoError(t, err)
	defer tracer.Detach(false)

	regs, err := tracer.GetRegisters()
	require.NoError(t, err)

	// getpid(2) is syscall number 39 on amd64; its return value must be
	// the tracee's own pid.
	ret, err := tracer.InjectSyscall(39)
	require.NoError(t, err)
	require.Equal(t, uint64(cmd.Process.Pid), ret)

	after, err := tracer.GetRegisters()
	require.NoError(t, err)
	require.Equal(t, regs, after, "registers must be restored exactly after injection")

	require.NoError(t, tracer.Detach(false))
}
