// Package battery reports charge state, percentage and time remaining for
// the system's batteries.
package battery

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/command"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

const (
	collectorID          = "battery"
	collectorDescription = "Battery charge, state and time remaining"

	// pmsetTimeout bounds the macOS probe.
	pmsetTimeout = 400 * time.Millisecond
)

var _ collectors.Collector = (*Collector)(nil)

// State is the charging state.
type State int

const (
	Unknown State = iota
	Charging
	Discharging
	Full
)

func (s State) String() string {
	switch s {
	case Charging:
		return "charging"
	case Discharging:
		return "discharging"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// ParseState maps the strings used by sysfs and pmset to a State.
func ParseState(s string) State {
	switch s {
	case "Charging", "charging", "AC attached", "finishing charge":
		return Charging
	case "Discharging", "discharging":
		return Discharging
	case "Full", "full", "charged", "Not charging":
		return Full
	default:
		return Unknown
	}
}

// Sample is the combined state of all batteries.
type Sample struct {
	Present bool
	State   State
	// Percent is in [0, 100].
	Percent float64
	// TimeRemaining is time to empty when discharging and time to full when
	// charging; zero when unknown.
	TimeRemaining time.Duration
	Time          time.Time
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

// Collector implements collectors.Collector for batteries.
type Collector struct {
	logger *slog.Logger
	src    source
	queue  []Sample
	last   Sample
}

// New creates a battery collector: sysfs on Linux, pmset on macOS, and an
// unavailable collector elsewhere.
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
		c.src = newSysfsSource(root)
	case runtime.GOOS == "darwin":
		c.src = &pmsetSource{run: command.Bounded(pmsetTimeout)}
	default:
		c.src = noSource{}
	}
	return c
}

func (c *Collector) ID() string          { return collectorID }
func (c *Collector) Description() string { return collectorDescription }

// IsAvailable reports whether a battery is present.
func (c *Collector) IsAvailable() bool { return c.src == nil || c.src.available() }

// Feed queues a sample for deterministic mode.
func (c *Collector) Feed(s Sample) { c.queue = append(c.queue, s) }

// Primed is always true: battery values are gauges.
func (c *Collector) Primed() bool { return true }

// Last returns the most recent sample.
func (c *Collector) Last() Sample { return c.last }

// Collect reads the battery state.
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
	s.Percent = max(0, min(100, s.Percent))
	c.last = s

	m := metrics.New(s.Time)
	m.SetGauge("battery.percent", s.Percent)
	m.SetGauge("battery.state", float64(s.State))
	m.SetGauge("battery.time.remaining.secs", s.TimeRemaining.Seconds())
	present := 0.0
	if s.Present {
		present = 1
	}
	m.SetGauge("battery.present", present)
	return m, nil
}

type noSource struct{}

func (noSource) available() bool { return false }
func (noSource) read(context.Context) (Sample, error) {
	return Sample{}, collectors.NewError(collectors.KindUnavailable, collectorID, runtime.GOOS, nil)
}
