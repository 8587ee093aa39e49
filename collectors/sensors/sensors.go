// Package sensors reads hardware monitoring chips: temperatures, fan
// speeds and voltages with their thresholds when the chip reports them.
package sensors

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "sensors"
	collectorDescription = "Temperatures, fan speeds and voltages"
)

var _ collectors.Collector = (*Collector)(nil)

// Kind is the physical quantity a sensor measures.
type Kind int

const (
	Temperature Kind = iota
	Fan
	Voltage
)

// Unit returns the metric key suffix for k.
func (k Kind) Unit() string {
	switch k {
	case Fan:
		return "rpm"
	case Voltage:
		return "volts"
	default:
		return "celsius"
	}
}

func (k Kind) String() string {
	switch k {
	case Fan:
		return "fan"
	case Voltage:
		return "voltage"
	default:
		return "temperature"
	}
}

// Reading is one sensor value. Max and Crit are zero when unknown.
type Reading struct {
	Chip  string
	Label string
	Kind  Kind
	Value float64
	Max   float64
	Crit  float64
}

// Key returns the dotted metric name for r.
func (r Reading) Key() string {
	return "sensors." + keyPart(r.Chip) + "." + keyPart(r.Label) + "." + r.Kind.Unit()
}

// keyPart lowercases s and replaces separators so it fits in a dotted key.
func keyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '/', '\t':
			return '_'
		}
		return r
	}, s)
}

// Sample is one reading of every sensor.
type Sample struct {
	Readings []Reading
	Time     time.Time
}

type source interface {
	available() bool
	read(ctx context.Context) (Sample, error)
}

// Options configures a Collector.
type Options struct {
	Deterministic bool
	SysRoot       string
	Logger        *slog.Logger
}

// Collector implements collectors.Collector for hardware sensors.
type Collector struct {
	logger *slog.Logger
	src    source
	queue  []Sample
	last   Sample
}

// New creates a sensors collector reading hwmon on Linux and gopsutil
// temperatures elsewhere.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Collector{logger: logger}
	switch {
	case opts.Deterministic:
	case runtime.GOOS == "linux":
		root := opts.SysRoot
		if root == "" {
			root = "/sys"
		}
		c.src = newHwmonSource(root)
	default:
		c.src = psutilSource{}
	}
	return c
}

func (c *Collector) ID() string          { return collectorID }
func (c *Collector) Description() string { return collectorDescription }

// IsAvailable reports whether any sensor chip is present.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a sample for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed is always true: sensor values are gauges.
func (c *Collector) Primed() bool { return true }

// Readings returns the readings from the last sample.
func (c *Collector) Readings() []Reading { return append([]Reading(nil), c.last.Readings...) }

// Collect reads every sensor and emits one gauge per reading.
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
	} else if len(c.queue) > 0 {
		s = c.queue[0]
		c.queue = c.queue[1:]
	}
	c.last = s

	m := metrics.New(s.Time)
	for _, r := range s.Readings {
		key := r.Key()
		for n := 2; ; n++ {
			if _, dup := m.Get(key); !dup {
				break
			}
			key = r.Key() + "_" + strconv.Itoa(n)
		}
		m.SetGauge(key, r.Value)
	}
	c.logger.Debug("sensors collected", "readings", len(s.Readings))
	return m, nil
}
