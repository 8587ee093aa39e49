// Package process snapshots the process table and derives per-process CPU
// and memory shares from consecutive snapshots.
package process

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "process"
	collectorDescription = "Process table with CPU and memory shares"
)

var _ collectors.Collector = (*Collector)(nil)

// Process is one row of the process table.
type Process struct {
	PID     int
	PPID    int
	Name    string
	Cmdline string
	User    string
	// State is the single-letter kernel state (R, S, D, Z, T, I).
	State string
	// CPUPercent is 100 per fully used core; 0 without a previous sample.
	CPUPercent float64
	// MemPercent is RSS over total memory, in [0, 100].
	MemPercent float64
	Threads    int
	RSS        uint64
	VSZ        uint64
	// ReadRate and WriteRate are storage bytes per second; 0 without a
	// previous sample or when io is unreadable.
	ReadRate  float64
	WriteRate float64
}

// RawProcess is what a back-end reads for one pid before any deltas.
type RawProcess struct {
	PID     int
	PPID    int
	Name    string
	Cmdline string
	UID     string
	User    string
	State   string
	Threads int
	RSS     uint64
	VSZ     uint64
	// Ticks is user+system CPU time in clock ticks.
	Ticks uint64
	// ReadBytes and WriteBytes are the storage I/O counters from
	// /proc/<pid>/io. HasIO is false when they could not be read.
	ReadBytes  uint64
	WriteBytes uint64
	HasIO      bool
}

// ioMark is the previous I/O counter pair of one pid.
type ioMark struct{ read, write uint64 }

// Sample is one snapshot of the process table together with the system
// totals needed to scale it.
type Sample struct {
	Procs []RawProcess
	// TotalTicks is the aggregate CPU time of the whole machine.
	TotalTicks uint64
	MemTotal   uint64
	Cores      int
	Time       time.Time
}

type source interface {
	available() bool
	read(ctx context.Context) (Sample, error)
}

// Options configures a Collector.
type Options struct {
	Deterministic bool
	ProcRoot      string
	Logger        *slog.Logger
}

// Collector implements collectors.Collector for the process table. It keeps
// the previous tick count per pid and a uid to user name cache.
type Collector struct {
	logger *slog.Logger
	src    source
	users  *userCache

	queue      []Sample
	prevTicks  map[int]uint64
	prevIO     map[int]ioMark
	prevTotal  uint64
	havePrev   bool
	procs      map[int]Process
	lastSample time.Time
}

// New creates a process collector.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{
		logger:    logger,
		users:     newUserCache(),
		prevTicks: make(map[int]uint64),
		prevIO:    make(map[int]ioMark),
		procs:     make(map[int]Process),
	}
	switch {
	case opts.Deterministic:
	case runtime.GOOS == "linux":
		root := opts.ProcRoot
		if root == "" {
			root = "/proc"
		}
		c.src = newProcSource(root)
	default:
		c.src = psutilSource{}
	}
	return c
}

func (c *Collector) ID() string          { return collectorID }
func (c *Collector) Description() string { return collectorDescription }

// IsAvailable reports whether the process table can be read.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a snapshot for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed reports whether CPU shares are based on two snapshots.
func (c *Collector) Primed() bool { return c.havePrev }

// Processes returns the last snapshot keyed by pid. The map is a copy.
func (c *Collector) Processes() map[int]Process {
	out := make(map[int]Process, len(c.procs))
	for pid, p := range c.procs {
		out[pid] = p
	}
	return out
}

// Sorted returns the last snapshot ordered by col. See Sort.
func (c *Collector) Sorted(col SortColumn, reverse bool) []Process {
	return Sort(c.procs, col, reverse)
}

// Collect snapshots the process table and emits summary counts.
func (c *Collector) Collect(ctx context.Context) (*metrics.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, collectors.Classify(collectorID, "", err)
	}
	var s Sample
	if c.src != nil {
		var err error
		if s, err = c.src.read(ctx); err != nil {
			return nil, err
		}
	} else {
		s = c.next()
	}

	primed := c.prevTotal > 0 && s.TotalTicks > c.prevTotal
	var dTotal float64
	if primed {
		dTotal = float64(s.TotalTicks - c.prevTotal)
	}
	cores := max(s.Cores, 1)
	var elapsed float64
	if !c.lastSample.IsZero() {
		elapsed = s.Time.Sub(c.lastSample).Seconds()
	}

	procs := make(map[int]Process, len(s.Procs))
	ticks := make(map[int]uint64, len(s.Procs))
	ios := make(map[int]ioMark, len(s.Procs))
	var threads, running int
	for _, r := range s.Procs {
		user := r.User
		if user == "" {
			user = c.users.lookup(r.UID)
		}
		p := Process{
			PID: r.PID, PPID: r.PPID, Name: r.Name, Cmdline: r.Cmdline,
			User: user, State: r.State, Threads: r.Threads, RSS: r.RSS, VSZ: r.VSZ,
		}
		if prev, ok := c.prevTicks[r.PID]; ok && primed && r.Ticks >= prev {
			p.CPUPercent = float64(r.Ticks-prev) / dTotal * float64(cores) * 100
		}
		if s.MemTotal > 0 {
			p.MemPercent = min(100, float64(r.RSS)/float64(s.MemTotal)*100)
		}
		if r.HasIO {
			cur := ioMark{read: r.ReadBytes, write: r.WriteBytes}
			if prev, ok := c.prevIO[r.PID]; ok && elapsed > 0 && cur.read >= prev.read && cur.write >= prev.write {
				p.ReadRate = float64(cur.read-prev.read) / elapsed
				p.WriteRate = float64(cur.write-prev.write) / elapsed
			}
			ios[r.PID] = cur
		}
		procs[r.PID] = p
		ticks[r.PID] = r.Ticks
		threads += r.Threads
		if r.State == "R" {
			running++
		}
	}
	// Replacing the map drops exited pids.
	c.prevTicks = ticks
	c.prevIO = ios
	c.prevTotal = s.TotalTicks
	c.havePrev = primed
	c.procs = procs
	c.lastSample = s.Time

	m := metrics.New(s.Time)
	m.SetGauge("process.count", float64(len(procs)))
	m.SetGauge("process.threads", float64(threads))
	m.SetGauge("process.running", float64(running))
	return m, nil
}

func (c *Collector) next() Sample {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		return s
	}
	var s Sample
	if !c.lastSample.IsZero() {
		s.Time = c.lastSample.Add(time.Second)
	}
	return s
}
