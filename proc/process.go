// Package proc models Linux processes as seen through procfs: discovery,
// status parsing, and the memory-map region stream. It is the leaf
// package the tracer, memory editor, and scanner all build on.
package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// PID identifies a kernel task.
type PID int32

// Process is an immutable handle naming a tracee by PID and its procfs
// directory. It owns no kernel resource and is cheap to copy; equality is
// by PID alone, as spec.md's data model requires.
type Process struct {
	pid PID
	dir string
}

// New builds a handle for an existing PID, failing with InvalidTargetError
// if /proc/<pid> does not exist.
func New(pid PID) (Process, error) {
	dir := procDir(pid)
	if _, err := os.Stat(dir); err != nil {
		return Process{}, newInvalidTargetError(fmt.Sprintf("no such process directory %s", dir))
	}
	return Process{pid: pid, dir: dir}, nil
}

// FromPath builds a handle from a procfs entry path directly, as the
// process iterator does. The path's filename must be all digits.
func FromPath(dir string) (Process, error) {
	name := filepath.Base(dir)
	if name == "" || !isNumeric(name) {
		return Process{}, newInvalidTargetError(fmt.Sprintf("%q is not a numeric procfs entry", dir))
	}
	if _, err := os.Stat(dir); err != nil {
		return Process{}, newInvalidTargetError(fmt.Sprintf("no such process directory %s", dir))
	}
	n, err := strconv.ParseInt(name, 10, 32)
	if err != nil {
		return Process{}, newInvalidTargetError(fmt.Sprintf("%q is not a valid pid", name))
	}
	return Process{pid: PID(n), dir: dir}, nil
}

func procDir(pid PID) string {
	return filepath.Join("/proc", strconv.FormatInt(int64(pid), 10))
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PID returns the process's numeric identifier.
func (p Process) PID() PID { return p.pid }

// Dir returns the process's procfs directory, e.g. "/proc/1234".
func (p Process) Dir() string { return p.dir }

// Equal reports whether two handles name the same PID.
func (p Process) Equal(other Process) bool { return p.pid == other.pid }

func (p Process) statPath() string { return filepath.Join(p.dir, "stat") }
func (p Process) exePath() string  { return filepath.Join(p.dir, "exe") }
func (p Process) mapsPath() string { return filepath.Join(p.dir, "maps") }
func (p Process) memPath() string  { return filepath.Join(p.dir, "mem") }

// ExecutablePath reads the "exe" symlink, growing the read buffer by
// doubling (starting at 512 bytes) until the link's content fits, per
// spec.md §4.1.
func (p Process) ExecutablePath() (string, error) {
	size := 512
	for {
		buf := make([]byte, size)
		n, err := readlink(p.exePath(), buf)
		if err != nil {
			return "", NewFilesystemError("readlink", p.exePath(), errnoOf(err))
		}
		if n < size {
			return string(buf[:n]), nil
		}
		size *= 2
	}
}

func readlink(path string, buf []byte) (int, error) {
	n, err := osReadlink(path, buf)
	return n, err
}

// Current returns a handle for the calling process itself.
func Current() Process {
	p, _ := New(PID(os.Getpid()))
	return p
}

// ByName truncates name to 15 bytes (the kernel's stat-line name field
// limit, per spec.md §6) and returns the first process whose Status.Name
// matches.
func ByName(name string) (Process, bool, error) {
	needle := truncateName(name)
	it := Iterate()
	for it.Next() {
		cur := it.Process()
		st, err := cur.Status()
		if err != nil {
			continue
		}
		if st.Name == needle {
			return cur, true, nil
		}
	}
	return Process{}, false, it.Err()
}

// ByNameAll is like ByName but returns every match.
func ByNameAll(name string) ([]Process, error) {
	needle := truncateName(name)
	var out []Process
	it := Iterate()
	for it.Next() {
		cur := it.Process()
		st, err := cur.Status()
		if err != nil {
			continue
		}
		if st.Name == needle {
			out = append(out, cur)
		}
	}
	return out, it.Err()
}

func truncateName(name string) string {
	if len(name) <= 15 {
		return name
	}
	return name[:15]
}
