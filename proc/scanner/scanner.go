package scanner

import (
	"errors"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vantage-systems/proctrace/internal/config"
	"github.com/vantage-systems/proctrace/internal/logflags"
	"github.com/vantage-systems/proctrace/proc"
	"github.com/vantage-systems/proctrace/proc/memedit"
	"github.com/vantage-systems/proctrace/proc/regioncache"
)

// Match is one occurrence of a pattern in the tracee's address space.
type Match struct {
	Address uint64
	Region  proc.Region
}

// Scanner sweeps a tracee's mapped memory for byte patterns. It reads
// exclusively through a *memedit.Editor rather than a raw
// proc.MemoryReader, so every sweep composes the region iterator with
// the memory editor as required, inheriting Editor.Read's stop-guard
// instead of racing the tracee's own execution.
type Scanner struct {
	process proc.Process
	editor  *memedit.Editor
	cache   *regioncache.Cache
}

// New builds a Scanner over process, reading memory through editor,
// backed by an LRU region cache sized and timed out per cfg.
func New(process proc.Process, editor *memedit.Editor, cfg config.Config) (*Scanner, error) {
	cache, err := regioncache.New(cfg.RegionCacheSize, ttlOrDefault(cfg.RegionCacheTTL))
	if err != nil {
		return nil, err
	}
	return &Scanner{process: process, editor: editor, cache: cache}, nil
}

func ttlOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// Refresh drops this scanner's cached region snapshot, forcing the next
// sweep to reparse /proc/<pid>/maps.
func (s *Scanner) Refresh() {
	s.cache.Invalidate(s.process.PID())
}

// FindAllRegions searches every mapped region for pattern.
func (s *Scanner) FindAllRegions(pattern Pattern) ([]Match, error) {
	return s.find(pattern, func(proc.Region) bool { return true })
}

// FindInRegion searches only region for pattern.
func (s *Scanner) FindInRegion(pattern Pattern, region proc.Region) ([]Match, error) {
	return s.scanRegion(pattern, region)
}

// PermFilter reports whether a region's permission mask should be
// searched. Each of the four positions (r, w, x, s|p) may be '*'
// (don't-care), or the exact expected character; any other value never
// matches. This checks all four positions independently -- the source's
// documented 3-vs-4-position confusion (position 2 checked twice
// instead of positions 2 and 3) is not reproduced.
type PermFilter [4]byte

// Matches reports whether perm satisfies f.
func (f PermFilter) Matches(perm proc.Permissions) bool {
	s := perm.String()
	for i := 0; i < 4; i++ {
		if f[i] == '*' {
			continue
		}
		if f[i] != s[i] {
			return false
		}
	}
	return true
}

// FindWithPermissions searches only regions matching filter.
func (s *Scanner) FindWithPermissions(pattern Pattern, filter PermFilter) ([]Match, error) {
	return s.find(pattern, func(r proc.Region) bool { return filter.Matches(r.Perms) })
}

func (s *Scanner) find(pattern Pattern, keep func(proc.Region) bool) ([]Match, error) {
	regions, err := s.cache.Fetch(s.process)
	if err != nil {
		return nil, err
	}
	log := logflags.ScannerLogger().WithField("pid", s.process.PID())

	var out []Match
	var scanned uint64
	for _, r := range regions {
		if !keep(r) || !r.Perms.Readable() {
			continue
		}
		matches, err := s.scanRegion(pattern, r)
		if err != nil {
			log.WithError(err).WithField("region", r.Path).Debug("skipping unreadable region")
			continue
		}
		scanned += r.Size()
		out = append(out, matches...)
	}
	log.WithField("regions", len(regions)).WithField("scanned", humanize.Bytes(scanned)).WithField("matches", len(out)).Debug("scan complete")
	return out, nil
}

func (s *Scanner) scanRegion(pattern Pattern, r proc.Region) ([]Match, error) {
	size := r.Size()
	if size == 0 {
		return nil, nil
	}
	buf := make([]byte, size)
	n, err := s.editor.Read(buf, r.Start)
	if err != nil {
		// A device-backed or currently-unmapped region can return EIO;
		// this is reported as "no match" rather than propagated, per
		// the error-handling design. Any other error is returned.
		if errors.Is(err, syscall.EIO) {
			return nil, nil
		}
		return nil, err
	}
	buf = buf[:n]

	var out []Match
	for _, off := range pattern.findAll(buf) {
		out = append(out, Match{Address: r.Start + uint64(off), Region: r})
	}
	return out, nil
}
