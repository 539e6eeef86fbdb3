package proc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// State is the single-character process state field from /proc/<pid>/stat.
type State byte

const (
	StateRunning       State = 'R'
	StateSleeping      State = 'S'
	StateWaiting       State = 'D'
	StateZombie        State = 'Z'
	StateStopped       State = 'T'
	StateTracingStop   State = 't'
	StateDead          State = 'X'
	StateDeadAlt       State = 'x'
	StateWakekill      State = 'K'
	StateWaking        State = 'W'
	StateParked        State = 'P'
	StateIdle          State = 'I'
	StatePaging        State = 'W' // kernels before 2.6.0 used 'W' for paging
)

// Status is the parsed content of /proc/<pid>/stat, field names and order
// mirroring the kernel's fs/proc/array.c do_task_stat, per spec.md §3.
type Status struct {
	PID                 PID
	Name                string
	State               State
	PPID                PID
	PGRP                int32
	Session             int32
	TTYNr               int32
	TPGID               int32
	Flags               uint32
	MinFlt              uint64
	CMinFlt             uint64
	MajFlt              uint64
	CMajFlt             uint64
	UTime               uint64
	STime               uint64
	CUTime              int64
	CSTime              int64
	Priority            int64
	Nice                int64
	NumThreads          int64
	ITRealValue         int64
	StartTime           uint64
	VSize               uint64
	RSS                 int64
	RSSLimit            uint64
	StartCode           uint64
	EndCode             uint64
	StartStack          uint64
	KStkESP             uint64
	KStkEIP             uint64
	Signal              uint64
	Blocked             uint64
	SigIgnore           uint64
	SigCatch            uint64
	WChan               uint64
	NSwap               uint64
	CNSwap              uint64
	ExitSignal          int32
	Processor           int32
	RTPriority          uint32
	Policy              uint32
	DelayAcctBlkioTicks uint64
	GuestTime           uint64
	CGuestTime          int64
}

// Status reads and parses /proc/<pid>/stat for this process.
func (p Process) Status() (Status, error) {
	raw, err := os.ReadFile(p.statPath())
	if err != nil {
		return Status{}, NewFilesystemError("read", p.statPath(), errnoOf(err))
	}
	return parseStatLine(string(raw))
}

// parseStatLine follows the kernel's own layout: pid, then "(comm)" which
// may itself contain spaces or parens, then the remaining space-separated
// fields in fixed order.
func parseStatLine(line string) (Status, error) {
	line = strings.TrimRight(line, "\n")

	openParen := strings.IndexByte(line, '(')
	closeParen := strings.LastIndexByte(line, ')')
	if openParen < 0 || closeParen < 0 || closeParen < openParen {
		return Status{}, NewUnexpectedError("parseStatLine", "malformed stat line: missing comm field")
	}

	pidField := strings.TrimSpace(line[:openParen])
	pid64, err := strconv.ParseInt(pidField, 10, 32)
	if err != nil {
		return Status{}, NewUnexpectedError("parseStatLine", fmt.Sprintf("bad pid field %q", pidField))
	}

	name := line[openParen+1 : closeParen]

	rest := strings.Fields(line[closeParen+1:])
	const minFields = 1  // at least the state character must be present
	const wantFields = 42 // state through cguest_time
	if len(rest) < minFields {
		return Status{}, NewUnexpectedError("parseStatLine",
			fmt.Sprintf("expected at least %d fields after comm, got %d", minFields, len(rest)))
	}

	s := Status{PID: PID(pid64), Name: name}
	s.State = State(rest[0][0])

	// Older kernels may report fewer trailing fields than the current
	// layout (guest_time/cguest_time were added in 2.6.24/2.6.24). A
	// short tail is tolerated the way the original's operator>> chain
	// tolerated running out of stream: fields beyond what's present are
	// left at their zero value rather than raising an error.
	present := func(i int) bool { return i < len(rest) && i < wantFields }

	var u64 = func(i int) uint64 {
		if !present(i) {
			return 0
		}
		v, _ := strconv.ParseUint(rest[i], 10, 64)
		return v
	}
	var i64 = func(i int) int64 {
		if !present(i) {
			return 0
		}
		v, _ := strconv.ParseInt(rest[i], 10, 64)
		return v
	}

	s.PPID = PID(i64(1))
	s.PGRP = int32(i64(2))
	s.Session = int32(i64(3))
	s.TTYNr = int32(i64(4))
	s.TPGID = int32(i64(5))
	s.Flags = uint32(u64(6))
	s.MinFlt = u64(7)
	s.CMinFlt = u64(8)
	s.MajFlt = u64(9)
	s.CMajFlt = u64(10)
	s.UTime = u64(11)
	s.STime = u64(12)
	s.CUTime = i64(13)
	s.CSTime = i64(14)
	s.Priority = i64(15)
	s.Nice = i64(16)
	s.NumThreads = i64(17)
	s.ITRealValue = i64(18)
	s.StartTime = u64(19)
	s.VSize = u64(20)
	s.RSS = i64(21)
	s.RSSLimit = u64(22)
	s.StartCode = u64(23)
	s.EndCode = u64(24)
	s.StartStack = u64(25)
	s.KStkESP = u64(26)
	s.KStkEIP = u64(27)
	s.Signal = u64(28)
	s.Blocked = u64(29)
	s.SigIgnore = u64(30)
	s.SigCatch = u64(31)
	s.WChan = u64(32)
	s.NSwap = u64(33)
	s.CNSwap = u64(34)
	s.ExitSignal = int32(i64(35))
	s.Processor = int32(i64(36))
	s.RTPriority = uint32(u64(37))
	s.Policy = uint32(u64(38))
	s.DelayAcctBlkioTicks = u64(39)
	s.GuestTime = u64(40)
	s.CGuestTime = i64(41)

	return s, nil
}

// Tty decomposes TTYNr into (major, minor) device numbers using the same
// bit layout as glibc's major()/minor() macros, matching what the
// original Ethon library's ProcessStatus::getTty() computed.
func (s Status) Tty() (major, minor uint32) {
	dev := uint32(s.TTYNr)
	major = (dev >> 8) & 0xfff
	minor = (dev & 0xff) | ((dev >> 12) & 0xfff00)
	return major, minor
}

func (s Status) IsRunning() bool  { return s.State == StateRunning }
func (s Status) IsSleeping() bool { return s.State == StateSleeping }
func (s Status) IsWaiting() bool  { return s.State == StateWaiting }
func (s Status) IsZombie() bool   { return s.State == StateZombie }
func (s Status) IsStopped() bool  { return s.State == StateStopped || s.State == StateTracingStop }
func (s Status) IsPaging() bool   { return s.State == StatePaging }
func (s Status) IsUnknown() bool {
	switch s.State {
	case StateRunning, StateSleeping, StateWaiting, StateZombie, StateStopped, StateTracingStop, StatePaging:
		return false
	default:
		return true
	}
}
