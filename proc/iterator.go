package proc

import (
	"os"

	"github.com/vantage-systems/proctrace/internal/logflags"
)

// ProcessIterator streams every PID currently visible under /proc,
// skipping non-numeric entries (self, thread-self, sys, etc). Like
// RegionIterator it is single-pass and non-restartable.
type ProcessIterator struct {
	entries []os.DirEntry
	idx     int
	cur     Process
	err     error
}

// Iterate opens an iterator over every process on the system. Errors
// reading the /proc directory itself surface lazily from Err after Next
// returns false, matching RegionIterator's convention.
func Iterate() *ProcessIterator {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return &ProcessIterator{err: NewFilesystemError("readdir", "/proc", errnoOf(err))}
	}
	return &ProcessIterator{entries: entries}
}

// Next advances to the next numeric /proc entry.
func (it *ProcessIterator) Next() bool {
	for it.idx < len(it.entries) {
		name := it.entries[it.idx].Name()
		it.idx++
		if !isNumeric(name) {
			continue
		}
		p, err := FromPath("/proc/" + name)
		if err != nil {
			// process exited between readdir and stat; skip it.
			logflags.ProcessLogger().WithField("pid", name).WithError(err).Debug("process vanished during iteration, skipping")
			continue
		}
		it.cur = p
		return true
	}
	return false
}

// Process returns the process produced by the most recent successful Next.
func (it *ProcessIterator) Process() Process { return it.cur }

// Err returns any error encountered opening /proc itself.
func (it *ProcessIterator) Err() error { return it.err }

// All materializes the full process list.
func All() ([]Process, error) {
	it := Iterate()
	var out []Process
	for it.Next() {
		out = append(out, it.Process())
	}
	return out, it.Err()
}
