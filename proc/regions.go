package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Permissions is a 4-bit mask decoded from a maps line's "rwxp" field.
type Permissions uint8

const (
	PermRead Permissions = 1 << iota
	PermWrite
	PermExec
	PermShared // clear means private ('p'), set means shared ('s')
)

func (p Permissions) Readable() bool { return p&PermRead != 0 }
func (p Permissions) Writable() bool { return p&PermWrite != 0 }
func (p Permissions) Executable() bool { return p&PermExec != 0 }
func (p Permissions) Shared() bool   { return p&PermShared != 0 }
func (p Permissions) Private() bool  { return p&PermShared == 0 }

func (p Permissions) String() string {
	b := [4]byte{'-', '-', '-', 'p'}
	if p.Readable() {
		b[0] = 'r'
	}
	if p.Writable() {
		b[1] = 'w'
	}
	if p.Executable() {
		b[2] = 'x'
	}
	if p.Shared() {
		b[3] = 's'
	}
	return string(b[:])
}

// Region is one line of /proc/<pid>/maps: a half-open address range
// [Start, End) plus its permissions, backing file offset, device,
// inode, and path (blank for anonymous mappings).
type Region struct {
	Start, End uint64
	Perms      Permissions
	Offset     uint64
	Dev        string // raw "major:minor" field, e.g. "08:01"
	DevMajor   uint32
	DevMinor   uint32
	Inode      uint64
	Path       string
}

// Size returns End-Start.
func (r Region) Size() uint64 { return r.End - r.Start }

// Contains reports whether addr falls in [Start, End). This is the
// corrected half-open interval test: the original Ethon library's
// matching_region compared start>=addr && end<=addr, a predicate no
// address can ever satisfy, per spec.md §5.
func (r Region) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// parseRegionLine parses one /proc/<pid>/maps line. Trailing whitespace
// and paths containing embedded spaces (files with spaces in their name)
// are tolerated by taking everything after the inode field, up to the
// end of the line and with leading whitespace stripped, as the path.
func parseRegionLine(line string) (Region, error) {
	toks := strings.Fields(strings.TrimRight(line, "\n"))
	if len(toks) < 5 {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("malformed maps line: %q", line))
	}

	addrs := strings.SplitN(toks[0], "-", 2)
	if len(addrs) != 2 {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("malformed address range: %q", toks[0]))
	}
	start, err := strconv.ParseUint(addrs[0], 16, 64)
	if err != nil {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("bad start address %q", addrs[0]))
	}
	end, err := strconv.ParseUint(addrs[1], 16, 64)
	if err != nil {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("bad end address %q", addrs[1]))
	}

	perms, err := parsePermissions(toks[1])
	if err != nil {
		return Region{}, err
	}

	offset, err := strconv.ParseUint(toks[2], 16, 64)
	if err != nil {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("bad offset %q", toks[2]))
	}

	dev := toks[3]
	devMajor, devMinor, err := parseDev(dev)
	if err != nil {
		return Region{}, err
	}

	inode, err := strconv.ParseUint(toks[4], 10, 64)
	if err != nil {
		return Region{}, NewUnexpectedError("parseRegionLine", fmt.Sprintf("bad inode %q", toks[4]))
	}

	path := ""
	if len(toks) > 5 {
		rest := strings.TrimRight(line, " \t\n")
		for i := 0; i < 5; i++ {
			rest = strings.TrimLeft(rest, " \t")
			rest = rest[strings.IndexAny(rest, " \t"):]
		}
		path = strings.TrimLeft(rest, " \t")
	}

	return Region{
		Start: start, End: end, Perms: perms, Offset: offset,
		Dev: dev, DevMajor: devMajor, DevMinor: devMinor,
		Inode: inode, Path: path,
	}, nil
}

// parseDev decodes a maps line's "major:minor" device field, both parts
// hex per the kernel's own %x:%x formatting in show_map_vma.
func parseDev(s string) (major, minor uint32, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, NewUnexpectedError("parseDev", fmt.Sprintf("malformed dev field %q", s))
	}
	maj, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, 0, NewUnexpectedError("parseDev", fmt.Sprintf("bad dev major %q", parts[0]))
	}
	min, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, NewUnexpectedError("parseDev", fmt.Sprintf("bad dev minor %q", parts[1]))
	}
	return uint32(maj), uint32(min), nil
}

// parsePermissions decodes the 4-character "rwxp" field. The original
// Ethon Scanner reused perms[1] for both the write and execute checks
// instead of reading perms[1] then perms[2], so a region was reported
// executable whenever it was writable; this reads all four positions,
// per spec.md §5.
func parsePermissions(s string) (Permissions, error) {
	if len(s) != 4 {
		return 0, NewUnexpectedError("parsePermissions", fmt.Sprintf("expected 4-character perms field, got %q", s))
	}
	var p Permissions
	switch s[0] {
	case 'r':
		p |= PermRead
	case '-':
	default:
		return 0, NewUnexpectedError("parsePermissions", fmt.Sprintf("bad read flag in %q", s))
	}
	switch s[1] {
	case 'w':
		p |= PermWrite
	case '-':
	default:
		return 0, NewUnexpectedError("parsePermissions", fmt.Sprintf("bad write flag in %q", s))
	}
	switch s[2] {
	case 'x':
		p |= PermExec
	case '-':
	default:
		return 0, NewUnexpectedError("parsePermissions", fmt.Sprintf("bad exec flag in %q", s))
	}
	switch s[3] {
	case 's':
		p |= PermShared
	case 'p':
	default:
		return 0, NewUnexpectedError("parsePermissions", fmt.Sprintf("bad shared flag in %q", s))
	}
	return p, nil
}

// RegionIterator streams /proc/<pid>/maps one region at a time. It is
// single-pass and non-restartable: once Next returns false the iterator
// is exhausted and a fresh one must be created, mirroring the sentinel
// (pseudo-)equality iterator in the original Ethon MemoryRegions API.
type RegionIterator struct {
	f       *os.File
	scanner *bufio.Scanner
	cur     Region
	err     error
	done    bool
}

// Regions opens a streaming iterator over this process's memory maps.
func (p Process) Regions() (*RegionIterator, error) {
	f, err := os.Open(p.mapsPath())
	if err != nil {
		return nil, NewFilesystemError("open", p.mapsPath(), errnoOf(err))
	}
	return &RegionIterator{f: f, scanner: bufio.NewScanner(f)}, nil
}

// Next advances the iterator, returning false at end-of-stream or error.
func (it *RegionIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.scanner.Scan() {
		it.done = true
		if err := it.scanner.Err(); err != nil && err != io.EOF {
			it.err = NewFilesystemError("read", "maps", errnoOf(err))
		}
		it.f.Close()
		return false
	}
	line := it.scanner.Text()
	if strings.TrimSpace(line) == "" {
		return it.Next()
	}
	r, err := parseRegionLine(line)
	if err != nil {
		it.err = err
		it.done = true
		it.f.Close()
		return false
	}
	it.cur = r
	return true
}

// Region returns the region produced by the most recent successful Next.
func (it *RegionIterator) Region() Region { return it.cur }

// Err returns the first error encountered, if any.
func (it *RegionIterator) Err() error { return it.err }

// Close releases the underlying file if the iterator was abandoned
// before exhaustion.
func (it *RegionIterator) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	return it.f.Close()
}

// RegionList materializes the full region list, consuming the iterator.
func (p Process) RegionList() ([]Region, error) {
	it, err := p.Regions()
	if err != nil {
		return nil, err
	}
	var out []Region
	for it.Next() {
		out = append(out, it.Region())
	}
	return out, it.Err()
}

// MatchingRegion returns the region containing addr, if any, using the
// corrected half-open Contains predicate.
func (p Process) MatchingRegion(addr uint64) (Region, bool, error) {
	it, err := p.Regions()
	if err != nil {
		return Region{}, false, err
	}
	for it.Next() {
		r := it.Region()
		if r.Contains(addr) {
			it.Close()
			return r, true, nil
		}
	}
	return Region{}, false, it.Err()
}
