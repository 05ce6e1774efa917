// Package procfs reads the process table. It backs two lookups: exact
// PID liveness/identity checks for registry-recorded processes, and
// command-line substring scans used as a best-effort recovery path for
// orphans left by a prior supervisor instance.
package procfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/c9s/goprocinfo/linux"
)

// Entry is one process-table row.
type Entry struct {
	PID        int
	Cmdline    string
	StartTicks uint64
}

// Table is the live /proc-backed process table.
type Table struct {
	root string
}

// New returns a Table reading from /proc.
func New() *Table {
	return &Table{root: "/proc"}
}

// NewWithRoot returns a Table rooted at an alternate proc mount, for
// tests.
func NewWithRoot(root string) *Table {
	return &Table{root: root}
}

// Snapshot lists every readable process with its command line. Processes
// that disappear mid-scan or whose cmdline is unreadable are skipped;
// kernel threads have empty cmdlines and are skipped too.
func (t *Table) Snapshot() ([]Entry, error) {
	dirs, err := os.ReadDir(t.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.root, err)
	}

	entries := make([]Entry, 0, len(dirs))
	for _, d := range dirs {
		pid, err := strconv.Atoi(d.Name())
		if err != nil {
			continue
		}
		cmdline, err := linux.ReadProcessCmdline(fmt.Sprintf("%s/%d/cmdline", t.root, pid))
		if err != nil || cmdline == "" {
			continue
		}
		entry := Entry{PID: pid, Cmdline: cmdline}
		if ticks, err := t.StartTicks(pid); err == nil {
			entry.StartTicks = ticks
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FindBySignature returns the PIDs of processes whose command line
// contains the signature substring. The supervisor's own PID is never
// reported.
func (t *Table) FindBySignature(signature string) ([]int, error) {
	if signature == "" {
		return nil, nil
	}
	entries, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	self := os.Getpid()
	var pids []int
	for _, e := range entries {
		if e.PID == self {
			continue
		}
		if strings.Contains(e.Cmdline, signature) {
			pids = append(pids, e.PID)
		}
	}
	return pids, nil
}

// StartTicks reads the process start time in clock ticks since boot,
// which together with the PID identifies a process across PID reuse.
func (t *Table) StartTicks(pid int) (uint64, error) {
	stat, err := linux.ReadProcessStat(fmt.Sprintf("%s/%d/stat", t.root, pid))
	if err != nil {
		return 0, fmt.Errorf("failed to read stat for pid %d: %w", pid, err)
	}
	return stat.Starttime, nil
}

// Alive reports whether a signal could be delivered to pid. EPERM means
// the process exists but belongs to another user.
func (t *Table) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// Signal delivers sig to pid. A vanished process (ESRCH) is not an
// error: the goal state is already reached.
func (t *Table) Signal(pid int, sig syscall.Signal) error {
	err := syscall.Kill(pid, sig)
	if err == nil || err == syscall.ESRCH {
		return nil
	}
	return fmt.Errorf("failed to signal pid %d with %v: %w", pid, sig, err)
}
