package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatLineBasic(t *testing.T) {
	line := "1234 (bash) S 1 1234 1234 34816 1234 4194304 267 0 0 0 12 4 0 0 20 0 1 0 100 12345678 1000000 200 18446744073709551615 4194304 4196452 140736123456 0 0 0 0 0 0 0 0 17 3 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0"
	st, err := parseStatLine(line)
	require.NoError(t, err)
	require.Equal(t, PID(1234), st.PID)
	require.Equal(t, "bash", st.Name)
	require.Equal(t, StateSleeping, st.State)
	require.True(t, st.IsSleeping())
	require.False(t, st.IsRunning())
	require.Equal(t, PID(1), st.PPID)
}

func TestParseStatLineNameWithParens(t *testing.T) {
	// comm fields can legitimately contain parens and spaces; the parser
	// must split on the first '(' and last ')' rather than the first pair.
	line := "99 ((weird) name)) R 1 99 99 0 -1 0 0 0 0 0 0 0 0 0 20 0 1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0"
	st, err := parseStatLine(line)
	require.NoError(t, err)
	require.Equal(t, "(weird) name)", st.Name)
	require.Equal(t, StateRunning, st.State)
}

func TestParseStatLineMalformed(t *testing.T) {
	_, err := parseStatLine("not a stat line")
	require.Error(t, err)
}

func TestParseStatLineTruncatedFields(t *testing.T) {
	_, err := parseStatLine("1 (x) S 1 1 1")
	require.Error(t, err)
}

func TestTtyDecomposition(t *testing.T) {
	// tty_nr = (major<<8)|minor for minor <= 0xff.
	st := Status{TTYNr: (4 << 8) | 64}
	major, minor := st.Tty()
	require.Equal(t, uint32(4), major)
	require.Equal(t, uint32(64), minor)
}

func TestStatePredicatesMutuallyExclusive(t *testing.T) {
	states := []State{StateRunning, StateSleeping, StateWaiting, StateZombie, StateStopped}
	for _, s := range states {
		st := Status{State: s}
		count := 0
		for _, b := range []bool{st.IsRunning(), st.IsSleeping(), st.IsWaiting(), st.IsZombie(), st.IsStopped()} {
			if b {
				count++
			}
		}
		require.Equal(t, 1, count, "state %q should satisfy exactly one predicate", string(s))
	}
}
