package proc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIterateFindsSelf(t *testing.T) {
	it := Iterate()
	require.NoError(t, it.Err())

	found := false
	for it.Next() {
		if it.Process().PID() == PID(os.Getpid()) {
			found = true
		}
	}
	require.NoError(t, it.Err())
	require.True(t, found, "process iterator should observe the test binary's own pid")
}

func TestIterateExhaustionIsNonRestartable(t *testing.T) {
	it := Iterate()
	for it.Next() {
	}
	require.False(t, it.Next(), "a second Next after exhaustion must keep returning false")
}

func TestRegionsStreamsAtLeastOneRegion(t *testing.T) {
	regions, err := Current().RegionList()
	require.NoError(t, err)
	require.NotEmpty(t, regions)
}

func TestMatchingRegionFindsExecutable(t *testing.T) {
	regions, err := Current().RegionList()
	require.NoError(t, err)

	var exec *Region
	for i := range regions {
		if regions[i].Perms.Executable() {
			exec = &regions[i]
			break
		}
	}
	require.NotNil(t, exec, "the test binary should have at least one executable mapping")

	found, ok, err := Current().MatchingRegion(exec.Start)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, exec.Start, found.Start)
}
