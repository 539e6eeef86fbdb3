package proc

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSystemAPIErrorUnwrapsToErrno(t *testing.T) {
	err := NewSystemAPIError("PTRACE_PEEKDATA", syscall.ESRCH)
	require.True(t, errors.Is(err, syscall.ESRCH))
}

func TestFilesystemErrorCarriesPath(t *testing.T) {
	err := NewFilesystemError("open", "/proc/1/mem", syscall.EACCES)
	require.Contains(t, err.Error(), "/proc/1/mem")
	require.True(t, errors.Is(err, syscall.EACCES))
}

func TestArgumentErrorMessage(t *testing.T) {
	err := NewArgumentError("InjectSyscall", "too many arguments")
	require.Contains(t, err.Error(), "InjectSyscall")
	require.Contains(t, err.Error(), "too many arguments")
}

func TestInvalidTargetErrorIsDistinguishable(t *testing.T) {
	err := newInvalidTargetError("no such pid")
	var target *InvalidTargetError
	require.True(t, errors.As(err, &target))
}
