package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vantage-systems/proctrace/proc"
)

func TestCompileRejectsLengthMismatch(t *testing.T) {
	_, err := Compile([]byte{1, 2, 3}, []byte{1, 2})
	require.Error(t, err)
}

func TestCompileRejectsEmptyPattern(t *testing.T) {
	_, err := Compile(nil, nil)
	require.Error(t, err)
}

func TestCompileLiteralFindsExactMatch(t *testing.T) {
	p, err := CompileLiteral([]byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	data := []byte{0x00, 0xde, 0xad, 0xbe, 0xef, 0x00}
	offsets := p.findAll(data)
	require.Equal(t, []int{1}, offsets)
}

func TestWildcardPatternMatchesAnyByteAtMask(t *testing.T) {
	pattern := []byte{0xde, 0x00, 0xbe, 0xef}
	mask := []byte("?*??")
	p, err := Compile(pattern, mask)
	require.NoError(t, err)
	require.True(t, p.hasWildcard())

	data := []byte{0xde, 0x99, 0xbe, 0xef, 0xde, 0x11, 0xbe, 0xef}
	offsets := p.findAll(data)
	require.Equal(t, []int{0, 4}, offsets)
}

func TestFindAllNoMatch(t *testing.T) {
	p, err := CompileLiteral([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.Empty(t, p.findAll([]byte{0x03, 0x04, 0x05}))
}

func TestPermFilterWildcardAndExact(t *testing.T) {
	perm := proc.Permissions(0)
	perm |= proc.PermRead | proc.PermWrite

	f := PermFilter{'r', 'w', '*', '*'}
	require.True(t, f.Matches(perm))

	f2 := PermFilter{'r', 'w', 'x', '*'}
	require.False(t, f2.Matches(perm), "region is not executable")
}

func TestPermFilterChecksAllFourPositionsIndependently(t *testing.T) {
	// Writable but not executable: the historical bug's 3-position mask
	// would have conflated these two checks.
	perm := proc.PermRead | proc.PermWrite
	f := PermFilter{'*', 'w', 'x', '*'}
	require.False(t, f.Matches(perm))
}
