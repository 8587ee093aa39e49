// Package network samples per-interface traffic counters and derives
// byte, packet and error rates.
package network

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strconv"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "network"
	collectorDescription = "Per-interface network throughput"
)

var _ collectors.Collector = (*Collector)(nil)

// InterfaceSample holds cumulative counters for one interface.
type InterfaceSample struct {
	Name      string
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
	RxErrs    uint64
	TxErrs    uint64
}

// Sample is one reading of every interface.
type Sample struct {
	Interfaces []InterfaceSample
	Time       time.Time
}

// InterfaceStats are the rates derived for one interface.
type InterfaceStats struct {
	Name          string
	RxRate        float64
	TxRate        float64
	RxPacketsRate float64
	TxPacketsRate float64
	RxErrsRate    float64
	TxErrsRate    float64
	RxBytes       uint64
	TxBytes       uint64
	RxErrs        uint64
	TxErrs        uint64
	Width         collectors.CounterWidth
}

type source interface {
	available() bool
	read(ctx context.Context) (Sample, error)
}

// Options configures a Collector.
type Options struct {
	Deterministic bool
	ProcRoot      string
	// IncludeLoopback keeps lo/lo0 in the output.
	IncludeLoopback bool
	Logger          *slog.Logger
}

type ifaceCounters struct {
	rxBytes, txBytes, rxPackets, txPackets, rxErrs, txErrs *collectors.Counter
}

// Collector implements collectors.Collector for network interfaces. The
// counter width of each interface is fixed on its first read.
type Collector struct {
	logger          *slog.Logger
	src             source
	includeLoopback bool
	intSize         int

	queue    []Sample
	last     Sample
	samples  int
	counters map[string]*ifaceCounters
	stats    []InterfaceStats
	primary  string
}

// New creates a network collector.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{
		logger:          logger,
		includeLoopback: opts.IncludeLoopback,
		intSize:         strconv.IntSize,
		counters:        make(map[string]*ifaceCounters),
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

// IsAvailable reports whether interface counters can be read.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a sample for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed reports whether rates are based on two samples.
func (c *Collector) Primed() bool { return c.samples >= 2 }

// Interfaces returns per-interface stats from the last sample, sorted by name.
func (c *Collector) Interfaces() []InterfaceStats {
	return append([]InterfaceStats(nil), c.stats...)
}

// Primary returns the interface with the highest rx+tx rate on the last
// sample, or "" when there are none.
func (c *Collector) Primary() string { return c.primary }

// Collect reads interface counters and emits counters and rates.
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

	m := metrics.New(s.Time)
	seen := make(map[string]bool, len(s.Interfaces))
	c.stats = c.stats[:0]
	for _, ifc := range s.Interfaces {
		if !c.includeLoopback && IsLoopback(ifc.Name) {
			continue
		}
		seen[ifc.Name] = true
		st := c.observe(ifc, s.Time)
		c.stats = append(c.stats, st)

		prefix := "net." + ifc.Name
		m.SetCounter(prefix+".rx.bytes", ifc.RxBytes)
		m.SetCounter(prefix+".tx.bytes", ifc.TxBytes)
		m.SetRate(prefix+".rx.rate", st.RxRate)
		m.SetRate(prefix+".tx.rate", st.TxRate)
		m.SetRate(prefix+".rx.packets.rate", st.RxPacketsRate)
		m.SetRate(prefix+".tx.packets.rate", st.TxPacketsRate)
		m.SetCounter(prefix+".rx.errs", ifc.RxErrs)
		m.SetCounter(prefix+".tx.errs", ifc.TxErrs)
		m.SetRate(prefix+".rx.errs.rate", st.RxErrsRate)
		m.SetRate(prefix+".tx.errs.rate", st.TxErrsRate)
	}
	for name := range c.counters {
		if !seen[name] {
			delete(c.counters, name)
		}
	}
	sort.Slice(c.stats, func(i, j int) bool { return c.stats[i].Name < c.stats[j].Name })

	c.primary = ""
	best := -1.0
	for _, st := range c.stats {
		if r := st.RxRate + st.TxRate; r > best {
			best, c.primary = r, st.Name
		}
	}
	var prx, ptx float64
	for _, st := range c.stats {
		if st.Name == c.primary {
			prx, ptx = st.RxRate, st.TxRate
		}
	}
	m.SetRate("net.primary.rx.rate", prx)
	m.SetRate("net.primary.tx.rate", ptx)

	c.logger.Debug("network collected", "interfaces", len(c.stats), "primary", c.primary)
	return m, nil
}

func (c *Collector) observe(ifc InterfaceSample, ts time.Time) InterfaceStats {
	ic, ok := c.counters[ifc.Name]
	if !ok {
		w := collectors.WidthFor(c.intSize, ifc.RxBytes, ifc.TxBytes, ifc.RxPackets, ifc.TxPackets)
		ic = &ifaceCounters{
			rxBytes:   collectors.NewCounter(w),
			txBytes:   collectors.NewCounter(w),
			rxPackets: collectors.NewCounter(w),
			txPackets: collectors.NewCounter(w),
			rxErrs:    collectors.NewCounter(w),
			txErrs:    collectors.NewCounter(w),
		}
		c.counters[ifc.Name] = ic
	}
	return InterfaceStats{
		Name:          ifc.Name,
		RxRate:        ic.rxBytes.Observe(ifc.RxBytes, ts),
		TxRate:        ic.txBytes.Observe(ifc.TxBytes, ts),
		RxPacketsRate: ic.rxPackets.Observe(ifc.RxPackets, ts),
		TxPacketsRate: ic.txPackets.Observe(ifc.TxPackets, ts),
		RxErrsRate:    ic.rxErrs.Observe(ifc.RxErrs, ts),
		TxErrsRate:    ic.txErrs.Observe(ifc.TxErrs, ts),
		RxBytes:       ifc.RxBytes,
		TxBytes:       ifc.TxBytes,
		RxErrs:        ifc.RxErrs,
		TxErrs:        ifc.TxErrs,
		Width:         ic.rxBytes.Width(),
	}
}

func (c *Collector) next() Sample {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		return s
	}
	s := Sample{Interfaces: c.last.Interfaces}
	if !c.last.Time.IsZero() {
		s.Time = c.last.Time.Add(time.Second)
	}
	return s
}

// IsLoopback reports whether name is a loopback interface (lo, lo0).
func IsLoopback(name string) bool {
	if name == "lo" {
		return true
	}
	if len(name) < 3 || name[:2] != "lo" {
		return false
	}
	for _, r := range name[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
