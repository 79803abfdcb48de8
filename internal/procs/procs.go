package procs

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessSnapshot is one row of a point-in-time process listing.
type ProcessSnapshot struct {
	PID        int
	PPID       int
	PGID       int
	CPUPercent float64
	RSS        uint64
	TTY        string
	StartedAt  time.Time
	Cmdline    []string
	WorkingDir string
}

// Command returns the argv joined for display and matching.
func (p ProcessSnapshot) Command() string {
	return strings.Join(p.Cmdline, " ")
}

// Elapsed returns how long the process has been running.
func (p ProcessSnapshot) Elapsed(now time.Time) time.Duration {
	if p.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(p.StartedAt)
}

// ErrNoSnapshot is returned when a scan fails and no previous snapshot is
// available to fall back on.
var ErrNoSnapshot = errors.New("process scan failed with no cached snapshot")

// Inventory caches a full process listing for a short TTL so one poll pass
// costs at most one OS scan no matter how many detectors consume it. A
// failed scan degrades to the last good listing.
type Inventory struct {
	mu      sync.Mutex
	ttl     time.Duration
	scan    func() ([]ProcessSnapshot, error)
	cached  []ProcessSnapshot
	takenAt time.Time
}

func NewInventory(ttl time.Duration) *Inventory {
	return &Inventory{ttl: ttl, scan: scanProcesses}
}

// Snapshot returns the current process listing, serving the cached copy
// while it is fresh. Callers must not mutate the returned slice.
func (inv *Inventory) Snapshot() ([]ProcessSnapshot, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.cached != nil && time.Since(inv.takenAt) < inv.ttl {
		return inv.cached, nil
	}

	procs, err := inv.scan()
	if err != nil {
		if inv.cached != nil {
			return inv.cached, nil
		}
		return nil, err
	}

	inv.cached = procs
	inv.takenAt = time.Now()
	return procs, nil
}

// Invalidate drops the cache so the next Snapshot performs a fresh scan.
func (inv *Inventory) Invalidate() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.cached = nil
}

// scanProcesses lists every visible process. Rows that error on individual
// fields are kept with whatever could be read; kernel threads (empty argv)
// are skipped since no agent runs as one.
func scanProcesses() ([]ProcessSnapshot, error) {
	all, err := process.Processes()
	if err != nil {
		return nil, err
	}

	results := make([]ProcessSnapshot, 0, len(all))
	for _, p := range all {
		argv, err := p.CmdlineSlice()
		if err != nil || len(argv) == 0 {
			continue
		}

		row := ProcessSnapshot{
			PID:     int(p.Pid),
			Cmdline: argv,
			PGID:    pgidOf(int(p.Pid)),
		}
		if ppid, err := p.Ppid(); err == nil {
			row.PPID = int(ppid)
		}
		if cpu, err := p.CPUPercent(); err == nil {
			row.CPUPercent = cpu
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			row.RSS = mem.RSS
		}
		if tty, err := p.Terminal(); err == nil {
			row.TTY = tty
		}
		if created, err := p.CreateTime(); err == nil && created > 0 {
			row.StartedAt = time.UnixMilli(created)
		}
		if cwd, err := p.Cwd(); err == nil {
			row.WorkingDir = cwd
		}

		results = append(results, row)
	}

	return results, nil
}

// IsAlive reports whether a pid still exists.
func IsAlive(pid int) bool {
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}

// Descendants returns all transitive children of pid ordered bottom-up
// (deepest first), which is the order a kill must walk them so children
// cannot be reparented mid-escalation.
func Descendants(pid int) []int {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil
	}

	var out []int
	children, err := p.Children()
	if err != nil {
		return nil
	}
	for _, c := range children {
		out = append(out, Descendants(int(c.Pid))...)
		out = append(out, int(c.Pid))
	}
	return out
}
