// Package cpu samples aggregate and per-core CPU time, load averages,
// frequency and uptime, and turns consecutive samples into utilization
// fractions.
package cpu

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "cpu"
	collectorDescription = "CPU utilization, load average, frequency and uptime"
)

// Compile-time check: Collector satisfies the collectors.Collector interface.
var _ collectors.Collector = (*Collector)(nil)

// Times holds cumulative CPU time counters in clock ticks.
type Times struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
}

// Total is the sum of all categories.
func (t Times) Total() uint64 {
	return t.User + t.Nice + t.System + t.Idle + t.IOWait + t.IRQ + t.SoftIRQ + t.Steal
}

// categories returns the counters in Categories order.
func (t Times) categories() [8]uint64 {
	return [8]uint64{t.User, t.Nice, t.System, t.Idle, t.IOWait, t.IRQ, t.SoftIRQ, t.Steal}
}

// Categories names the Times fields as they appear in metric keys.
var Categories = [8]string{"user", "nice", "system", "idle", "iowait", "irq", "softirq", "steal"}

// Sample is one reading of the CPU counters.
type Sample struct {
	Aggregate Times
	Cores     []Times
	Load1     float64
	Load5     float64
	Load15    float64
	FreqMHz   float64
	Uptime    time.Duration
	Time      time.Time
}

// Usage is the utilization derived from two samples. All values are
// fractions in [0, 1].
type Usage struct {
	Total      float64
	Cores      []float64
	Categories [8]float64
}

// source reads one sample from the OS.
type source interface {
	available() bool
	read(ctx context.Context) (Sample, error)
}

// Options configures a Collector.
type Options struct {
	// Deterministic disables every OS read; samples come from Feed.
	Deterministic bool
	// ProcRoot overrides /proc for the Linux back-end.
	ProcRoot string
	Logger   *slog.Logger
}

// Collector implements collectors.Collector for CPU time. It retains the
// previous sample to compute utilization deltas.
type Collector struct {
	logger *slog.Logger
	src    source

	queue  []Sample
	prev   *Sample
	usage  Usage
	primed bool
}

// New creates a CPU collector, selecting the procfs back-end on Linux and
// gopsutil elsewhere. If opts.Logger is nil, a no-op logger is used.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{logger: logger}
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

// ID returns the collector's unique identifier.
func (c *Collector) ID() string { return collectorID }

// Description returns a human-readable description of what this collector gathers.
func (c *Collector) Description() string { return collectorDescription }

// IsAvailable reports whether the CPU counters can be read.
func (c *Collector) IsAvailable() bool {
	return c.src == nil || c.src.available()
}

// Feed queues a sample for the next Collect in deterministic mode.
func (c *Collector) Feed(s Sample) {
	c.queue = append(c.queue, s)
}

// Primed reports whether the last Collect had a previous sample to diff
// against, so Usage is meaningful.
func (c *Collector) Primed() bool { return c.primed }

// Usage returns the utilization computed by the last Collect.
func (c *Collector) Usage() Usage { return c.usage }

// Collect reads (or dequeues) a sample and emits load, usage and counter keys.
// Percent keys are zero on the first call.
func (c *Collector) Collect(ctx context.Context) (*metrics.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, collectors.Classify(collectorID, "", err)
	}

	var s Sample
	if c.src != nil {
		var err error
		s, err = c.src.read(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		s = c.next()
	}

	c.primed = false
	c.usage = Usage{Cores: make([]float64, len(s.Cores))}
	if c.prev != nil {
		c.usage.Total, c.usage.Categories = usage(c.prev.Aggregate, s.Aggregate)
		for i := range s.Cores {
			if i < len(c.prev.Cores) {
				c.usage.Cores[i], _ = usage(c.prev.Cores[i], s.Cores[i])
			}
		}
		c.primed = true
	}
	prev := s
	c.prev = &prev

	m := metrics.New(s.Time)
	m.SetGauge("cpu.load.1", s.Load1)
	m.SetGauge("cpu.load.5", s.Load5)
	m.SetGauge("cpu.load.15", s.Load15)
	m.SetGauge("cpu.usage.percent", c.usage.Total)
	for i, u := range c.usage.Cores {
		m.SetGauge("cpu.core."+strconv.Itoa(i)+".percent", u)
	}
	for i, name := range Categories {
		m.SetGauge("cpu."+name+".percent", c.usage.Categories[i])
	}
	m.SetGauge("cpu.freq.mhz", s.FreqMHz)
	m.SetGauge("cpu.uptime.secs", s.Uptime.Seconds())
	m.SetGauge("cpu.cores", float64(len(s.Cores)))
	m.SetCounter("cpu.ticks.total", s.Aggregate.Total())
	m.SetCounter("cpu.ticks.idle", s.Aggregate.Idle)

	c.logger.Debug("cpu collected",
		"usage", c.usage.Total,
		"cores", len(s.Cores),
		"primed", c.primed,
	)
	return m, nil
}

// next pops the oldest fed sample, or returns a zero sample stamped one
// second after the previous one.
func (c *Collector) next() Sample {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		return s
	}
	var s Sample
	if c.prev != nil {
		s.Time = c.prev.Time.Add(time.Second)
		s.Cores = make([]Times, len(c.prev.Cores))
	}
	return s
}

// usage returns the busy fraction and per-category fractions between two
// readings. A counter that went backwards contributes zero.
func usage(prev, curr Times) (float64, [8]float64) {
	var out [8]float64
	p, q := prev.categories(), curr.categories()
	var deltas [8]uint64
	var total uint64
	for i := range q {
		if q[i] > p[i] {
			deltas[i] = q[i] - p[i]
		}
		total += deltas[i]
	}
	if total == 0 {
		return 0, out
	}
	for i, d := range deltas {
		out[i] = float64(d) / float64(total)
	}
	busy := 1 - float64(deltas[3])/float64(total)
	return clamp01(busy), out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
