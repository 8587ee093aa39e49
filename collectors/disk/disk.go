// Package disk enumerates mounted filesystems and samples per-device block
// I/O counters.
package disk

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "disk"
	collectorDescription = "Filesystem usage and block device throughput"
)

var _ collectors.Collector = (*Collector)(nil)

// Mount is one mounted filesystem with its capacity in bytes.
type Mount struct {
	MountPoint string
	Device     string
	FSType     string
	Total      uint64
	Used       uint64
	Free       uint64
	// IODevice is the block device whose counters back this mount, or ""
	// when Device has no I/O counters. Set by Collect.
	IODevice string
}

// UsedPercent returns Used/Total in [0, 100].
func (m Mount) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return min(100, float64(m.Used)/float64(m.Total)*100)
}

// DeviceSample holds cumulative I/O counters for one block device.
type DeviceSample struct {
	Name       string
	ReadBytes  uint64
	WriteBytes uint64
	ReadOps    uint64
	WriteOps   uint64
	ReadMs     uint64
	WriteMs    uint64
	// InFlight is the number of requests currently queued (a gauge).
	InFlight uint64
	// IOMs is time spent with at least one request in flight.
	IOMs uint64
	// WeightedMs is IOMs weighted by queue depth.
	WeightedMs uint64
}

// Sample is one reading of mounts and device counters.
type Sample struct {
	Mounts  []Mount
	Devices []DeviceSample
	Time    time.Time
}

// DeviceStats are the rates derived for one device from two samples.
type DeviceStats struct {
	Name         string
	ReadRate     float64
	WriteRate    float64
	ReadOpsRate  float64
	WriteOpsRate float64
	InFlight     float64
	// QueueDepth is the average number of requests in flight over the interval.
	QueueDepth  float64
	BusyPercent float64
}

// OpsRate is read plus write operations per second.
func (d DeviceStats) OpsRate() float64 { return d.ReadOpsRate + d.WriteOpsRate }

// BytesRate is read plus write bytes per second.
func (d DeviceStats) BytesRate() float64 { return d.ReadRate + d.WriteRate }

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

type deviceCounters struct {
	readBytes, writeBytes, readOps, writeOps, ioMs, weightedMs *collectors.Counter
}

func newDeviceCounters() *deviceCounters {
	return &deviceCounters{
		readBytes:  collectors.NewCounter(0),
		writeBytes: collectors.NewCounter(0),
		readOps:    collectors.NewCounter(0),
		writeOps:   collectors.NewCounter(0),
		ioMs:       collectors.NewCounter(0),
		weightedMs: collectors.NewCounter(0),
	}
}

// Collector implements collectors.Collector for disks. It retains one set
// of counters per device.
type Collector struct {
	logger *slog.Logger
	src    source
	queue  []Sample
	last   Sample

	counters map[string]*deviceCounters
	stats    []DeviceStats
	samples  int
}

// New creates a disk collector.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{logger: logger, counters: make(map[string]*deviceCounters)}
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

// IsAvailable reports whether mounts can be enumerated.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a sample for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed reports whether device rates are based on two samples.
func (c *Collector) Primed() bool { return c.samples >= 2 }

// Mounts returns the filesystems from the last sample.
func (c *Collector) Mounts() []Mount { return append([]Mount(nil), c.last.Mounts...) }

// Devices returns per-device rates from the last sample, sorted by name.
func (c *Collector) Devices() []DeviceStats { return append([]DeviceStats(nil), c.stats...) }

// Device returns the stats of the named device from the last sample.
func (c *Collector) Device(name string) (DeviceStats, bool) {
	if name == "" {
		return DeviceStats{}, false
	}
	i := sort.Search(len(c.stats), func(i int) bool { return c.stats[i].Name >= name })
	if i < len(c.stats) && c.stats[i].Name == name {
		return c.stats[i], true
	}
	return DeviceStats{}, false
}

// resolveMounts returns a copy of mounts with IODevice set against the
// devices that have counters.
func (c *Collector) resolveMounts(mounts []Mount, known map[string]bool) []Mount {
	out := make([]Mount, len(mounts))
	for i, mt := range mounts {
		mt.IODevice, _ = ResolveDevice(mt.Device, known)
		out[i] = mt
	}
	return out
}

// Collect reads mounts and device counters and emits usage and rate keys.
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
	for _, mt := range s.Mounts {
		prefix := "disk.mount." + mt.MountPoint
		m.SetGauge(prefix+".total.bytes", float64(mt.Total))
		m.SetGauge(prefix+".used.bytes", float64(mt.Used))
		m.SetGauge(prefix+".free.bytes", float64(mt.Free))
		m.SetGauge(prefix+".used.percent", mt.UsedPercent())
	}

	seen := make(map[string]bool, len(s.Devices))
	c.stats = c.stats[:0]
	for _, d := range s.Devices {
		seen[d.Name] = true
		st := c.observe(d, s.Time)
		c.stats = append(c.stats, st)

		prefix := "disk." + d.Name
		m.SetCounter(prefix+".read.bytes", d.ReadBytes)
		m.SetCounter(prefix+".write.bytes", d.WriteBytes)
		m.SetRate(prefix+".read.rate", st.ReadRate)
		m.SetRate(prefix+".write.rate", st.WriteRate)
		m.SetRate(prefix+".ops.rate", st.OpsRate())
		m.SetGauge(prefix+".inflight", st.InFlight)
		m.SetGauge(prefix+".queue.depth", st.QueueDepth)
		m.SetGauge(prefix+".busy.percent", st.BusyPercent)
	}
	for name := range c.counters {
		if !seen[name] {
			delete(c.counters, name)
		}
	}
	sort.Slice(c.stats, func(i, j int) bool { return c.stats[i].Name < c.stats[j].Name })

	c.last.Mounts = c.resolveMounts(s.Mounts, seen)
	for _, mt := range c.last.Mounts {
		st, ok := c.Device(mt.IODevice)
		if !ok {
			continue
		}
		prefix := "disk.mount." + mt.MountPoint
		m.SetRate(prefix+".read.rate", st.ReadRate)
		m.SetRate(prefix+".write.rate", st.WriteRate)
	}

	c.logger.Debug("disk collected", "mounts", len(s.Mounts), "devices", len(s.Devices))
	return m, nil
}

func (c *Collector) observe(d DeviceSample, ts time.Time) DeviceStats {
	dc, ok := c.counters[d.Name]
	if !ok {
		dc = newDeviceCounters()
		c.counters[d.Name] = dc
	}
	st := DeviceStats{
		Name:         d.Name,
		ReadRate:     dc.readBytes.Observe(d.ReadBytes, ts),
		WriteRate:    dc.writeBytes.Observe(d.WriteBytes, ts),
		ReadOpsRate:  dc.readOps.Observe(d.ReadOps, ts),
		WriteOpsRate: dc.writeOps.Observe(d.WriteOps, ts),
		InFlight:     float64(d.InFlight),
	}
	// Millisecond counters per second of wall time: busy ms/s and queue depth.
	busy := dc.ioMs.Observe(d.IOMs, ts)
	st.BusyPercent = max(0, min(100, busy/10))
	st.QueueDepth = dc.weightedMs.Observe(d.WeightedMs, ts) / 1000
	return st
}

func (c *Collector) next() Sample {
	if len(c.queue) > 0 {
		s := c.queue[0]
		c.queue = c.queue[1:]
		return s
	}
	s := Sample{Mounts: c.last.Mounts, Devices: c.last.Devices}
	if !c.last.Time.IsZero() {
		s.Time = c.last.Time.Add(time.Second)
	}
	return s
}
