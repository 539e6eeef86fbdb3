package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRegionLineBasic(t *testing.T) {
	line := "00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon"
	r, err := parseRegionLine(line)
	require.NoError(t, err)
	require.Equal(t, uint64(0x00400000), r.Start)
	require.Equal(t, uint64(0x00452000), r.End)
	require.True(t, r.Perms.Readable())
	require.False(t, r.Perms.Writable())
	require.True(t, r.Perms.Executable())
	require.True(t, r.Perms.Private())
	require.Equal(t, "/usr/bin/dbus-daemon", r.Path)
	require.Equal(t, "08:02", r.Dev)
	require.Equal(t, uint32(8), r.DevMajor)
	require.Equal(t, uint32(2), r.DevMinor)
}

func TestParseRegionLineDevMajorMinor(t *testing.T) {
	line := "7f2b3c000000-7f2b3c021000 rw-p 00000000 08:01 9001 /dev/sda1"
	r, err := parseRegionLine(line)
	require.NoError(t, err)
	require.Equal(t, uint32(8), r.DevMajor)
	require.Equal(t, uint32(1), r.DevMinor)
}

func TestParseRegionLineAnonymous(t *testing.T) {
	line := "7f2b3c000000-7f2b3c021000 rw-p 00000000 00:00 0 "
	r, err := parseRegionLine(line)
	require.NoError(t, err)
	require.Equal(t, "", r.Path)
	require.True(t, r.Perms.Writable())
	require.False(t, r.Perms.Executable())
}

func TestParseRegionLinePathWithSpaces(t *testing.T) {
	line := "7f2b3c000000-7f2b3c021000 rw-s 00000000 00:00 0  [heap] extra bit"
	r, err := parseRegionLine(line)
	require.NoError(t, err)
	require.True(t, r.Perms.Shared())
	require.Equal(t, "[heap] extra bit", r.Path)
}

func TestParsePermissionsAllFourPositionsChecked(t *testing.T) {
	// The historical bug reused perms[1] for both write and exec checks;
	// this exercises a region that is writable but NOT executable, which
	// the buggy code would have reported as executable.
	p, err := parsePermissions("rw-p")
	require.NoError(t, err)
	require.True(t, p.Writable())
	require.False(t, p.Executable())

	p2, err := parsePermissions("r-xp")
	require.NoError(t, err)
	require.False(t, p2.Writable())
	require.True(t, p2.Executable())
}

func TestRegionContainsHalfOpenInterval(t *testing.T) {
	r := Region{Start: 0x1000, End: 0x2000}
	require.True(t, r.Contains(0x1000), "start address is inside the region")
	require.False(t, r.Contains(0x2000), "end address is exclusive")
	require.True(t, r.Contains(0x1fff))
	require.False(t, r.Contains(0x0fff))
}

func TestRegionSize(t *testing.T) {
	r := Region{Start: 0x1000, End: 0x1400}
	require.Equal(t, uint64(0x400), r.Size())
}
