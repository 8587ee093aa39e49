// Package memory samples physical memory, swap and paging activity.
package memory

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
	collectorID          = "memory"
	collectorDescription = "Physical memory, swap usage and paging rates"
)

var _ collectors.Collector = (*Collector)(nil)

// Sample is one reading of memory state. Sizes are in bytes; paging
// counters are cumulative page counts.
type Sample struct {
	Total     uint64
	Free      uint64
	Available uint64
	Buffers   uint64
	Cached    uint64
	SwapTotal uint64
	SwapFree  uint64

	SwapIn      uint64
	SwapOut     uint64
	MajorFaults uint64

	Time time.Time
}

// Breakdown is a normalized view of a Sample in which
// Used + Free + Buffers + Cached == Total.
type Breakdown struct {
	Total, Used, Free, Buffers, Cached uint64
	UsedPercent                        float64
	SwapTotal, SwapUsed, SwapFree      uint64
	SwapPercent                        float64
}

// Normalize clamps the components so they never exceed Total and derives
// Used as the remainder.
func (s Sample) Normalize() Breakdown {
	b := Breakdown{Total: s.Total}
	b.Free = min(s.Free, s.Total)
	b.Buffers = min(s.Buffers, s.Total-b.Free)
	b.Cached = min(s.Cached, s.Total-b.Free-b.Buffers)
	b.Used = s.Total - b.Free - b.Buffers - b.Cached
	b.UsedPercent = percent(b.Used, b.Total)

	b.SwapTotal = s.SwapTotal
	b.SwapFree = min(s.SwapFree, s.SwapTotal)
	b.SwapUsed = s.SwapTotal - b.SwapFree
	b.SwapPercent = percent(b.SwapUsed, b.SwapTotal)
	return b
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	p := float64(part) / float64(whole) * 100
	return max(0, min(100, p))
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

// Collector implements collectors.Collector for memory and swap.
type Collector struct {
	logger  *slog.Logger
	src     source
	queue   []Sample
	last    Sample
	samples int

	swapIn, swapOut, majFaults *collectors.Counter
}

// New creates a memory collector. Paging counters are tracked with the
// host's native width.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{
		logger:    logger,
		swapIn:    collectors.NewCounter(0),
		swapOut:   collectors.NewCounter(0),
		majFaults: collectors.NewCounter(0),
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

// IsAvailable reports whether memory statistics can be read.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a sample for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed reports whether paging rates are based on two samples.
func (c *Collector) Primed() bool { return c.samples >= 2 }

// Last returns the most recent sample.
func (c *Collector) Last() Sample { return c.last }

// Collect reads memory state and emits byte gauges, percents and paging rates.
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
	c.last = s
	c.samples++
	b := s.Normalize()

	m := metrics.New(s.Time)
	m.SetGauge("memory.total.bytes", float64(b.Total))
	m.SetGauge("memory.free.bytes", float64(b.Free))
	m.SetGauge("memory.available.bytes", float64(min(s.Available, s.Total)))
	m.SetGauge("memory.buffers.bytes", float64(b.Buffers))
	m.SetGauge("memory.cached.bytes", float64(b.Cached))
	m.SetGauge("memory.used.bytes", float64(b.Used))
	m.SetGauge("memory.used.percent", b.UsedPercent)
	m.SetGauge("memory.available.percent", percent(min(s.Available, s.Total), s.Total))
	m.SetGauge("swap.total.bytes", float64(b.SwapTotal))
	m.SetGauge("swap.used.bytes", float64(b.SwapUsed))
	m.SetGauge("swap.free.bytes", float64(b.SwapFree))
	m.SetGauge("swap.used.percent", b.SwapPercent)

	m.SetCounter("memory.swap.in.pages", s.SwapIn)
	m.SetRate("memory.swap.in.rate", c.swapIn.Observe(s.SwapIn, s.Time))
	m.SetCounter("memory.swap.out.pages", s.SwapOut)
	m.SetRate("memory.swap.out.rate", c.swapOut.Observe(s.SwapOut, s.Time))
	m.SetCounter("memory.faults.major", s.MajorFaults)
	m.SetRate("memory.faults.major.rate", c.majFaults.Observe(s.MajorFaults, s.Time))

	c.logger.Debug("memory collected", "used_percent", b.UsedPercent, "swap_percent", b.SwapPercent)
	return m, nil
}

func (c *Collector) next() Sample {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		return s
	}
	s := Sample{SwapIn: c.last.SwapIn, SwapOut: c.last.SwapOut, MajorFaults: c.last.MajorFaults}
	if !c.last.Time.IsZero() {
		s.Time = c.last.Time.Add(time.Second)
	}
	return s
}
