package proc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCurrentProcess(t *testing.T) {
	p, err := New(PID(os.Getpid()))
	require.NoError(t, err)
	require.Equal(t, PID(os.Getpid()), p.PID())
}

func TestNewInvalidPID(t *testing.T) {
	// PID 0 never names a real /proc entry.
	_, err := New(PID(0))
	require.Error(t, err)
	var target *InvalidTargetError
	require.ErrorAs(t, err, &target)
}

func TestFromPathRejectsNonNumeric(t *testing.T) {
	_, err := FromPath("/proc/self")
	require.Error(t, err)
}

func TestCurrentStatus(t *testing.T) {
	st, err := Current().Status()
	require.NoError(t, err)
	require.Equal(t, PID(os.Getpid()), st.PID)
	require.False(t, st.IsZombie())
}

func TestExecutablePath(t *testing.T) {
	path, err := Current().ExecutablePath()
	require.NoError(t, err)
	require.NotEmpty(t, path)
}

func TestTruncateName(t *testing.T) {
	require.Equal(t, "123456789012345", truncateName("123456789012345678"))
	require.Equal(t, "short", truncateName("short"))
}
