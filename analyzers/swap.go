package analyzers

import (
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/internal/procfs"
	"gitlab.com/tinyland/lab/ttop/metrics"
	"gitlab.com/tinyland/lab/ttop/ringbuf"
)

// ThrashingSeverity grades sustained paging activity.
type ThrashingSeverity int

const (
	ThrashNone ThrashingSeverity = iota
	ThrashLight
	ThrashModerate
	ThrashSevere
)

func (s ThrashingSeverity) String() string {
	switch s {
	case ThrashLight:
		return "light"
	case ThrashModerate:
		return "moderate"
	case ThrashSevere:
		return "severe"
	default:
		return "none"
	}
}

// Thrashing thresholds in pages per second of major faults plus swap traffic.
const (
	thrashLight    = 10
	thrashModerate = 100
	thrashSevere   = 1000
)

// SwapWindow is the span of the moving average.
const SwapWindow = 60 * time.Second

// ClassifyThrashing maps a paging rate to a severity.
func ClassifyThrashing(pagesPerSec float64) ThrashingSeverity {
	switch {
	case pagesPerSec >= thrashSevere:
		return ThrashSevere
	case pagesPerSec >= thrashModerate:
		return ThrashModerate
	case pagesPerSec >= thrashLight:
		return ThrashLight
	default:
		return ThrashNone
	}
}

type pagingPoint struct {
	at    time.Time
	pages float64
}

// ZramStats aggregates /sys/block/zram*/mm_stat.
type ZramStats struct {
	Devices         int
	OrigBytes       uint64
	CompressedBytes uint64
}

// Ratio is original over compressed size, or 0 when nothing is stored.
func (z ZramStats) Ratio() float64 {
	if z.CompressedBytes == 0 {
		return 0
	}
	return float64(z.OrigBytes) / float64(z.CompressedBytes)
}

// SwapReport is the analyzer output for one tick.
type SwapReport struct {
	Average  float64
	Severity ThrashingSeverity
	Zram     ZramStats
}

// SwapAnalyzer tracks a sliding window of paging activity.
type SwapAnalyzer struct {
	fs     procfs.FS
	window *ringbuf.Ring[pagingPoint]
}

// NewSwapAnalyzer creates an analyzer reading zram stats below sysRoot. An
// empty sysRoot disables zram tracking.
func NewSwapAnalyzer(sysRoot string) *SwapAnalyzer {
	// One point per collect tick; sub-second ticks are bounded by the window
	// timestamp check.
	return &SwapAnalyzer{
		fs:     procfs.FS{Root: sysRoot},
		window: ringbuf.MustNew[pagingPoint](600),
	}
}

// Observe records one tick of paging rates in pages per second.
func (a *SwapAnalyzer) Observe(at time.Time, majorFaults, swapIn, swapOut float64) {
	a.window.Push(pagingPoint{at: at, pages: majorFaults + swapIn + swapOut})
}

// ObserveMetrics pulls the paging rates out of a memory collector snapshot.
// It reports false when the snapshot has no paging rates.
func (a *SwapAnalyzer) ObserveMetrics(m *metrics.Metrics) bool {
	faults, ok1 := m.Rate("memory.faults.major.rate")
	in, ok2 := m.Rate("memory.swap.in.rate")
	out, ok3 := m.Rate("memory.swap.out.rate")
	if !ok1 && !ok2 && !ok3 {
		return false
	}
	a.Observe(m.Timestamp, faults, in, out)
	return true
}

// Average returns the mean paging rate over the last SwapWindow.
func (a *SwapAnalyzer) Average() float64 {
	latest, ok := a.window.Latest()
	if !ok {
		return 0
	}
	cutoff := latest.at.Add(-SwapWindow)
	var sum float64
	var n int
	for p := range a.window.All() {
		if p.at.Before(cutoff) {
			continue
		}
		sum += p.pages
		n++
	}
	return sum / float64(n)
}

// Severity classifies the current moving average.
func (a *SwapAnalyzer) Severity() ThrashingSeverity { return ClassifyThrashing(a.Average()) }

// Zram sums mm_stat over every zram device. Missing devices yield a zero
// value and no error.
func (a *SwapAnalyzer) Zram() (ZramStats, error) {
	var z ZramStats
	if a.fs.Root == "" {
		return z, nil
	}
	devs, err := a.fs.Glob("block/zram*")
	if err != nil {
		return z, err
	}
	for _, dev := range devs {
		line, err := a.fs.String(dev, "mm_stat")
		if err != nil {
			continue
		}
		vals, err := procfs.Uints(strings.Fields(line))
		if err != nil || len(vals) < 2 {
			return z, &procfs.ParseError{Path: a.fs.Path(dev, "mm_stat"), Line: 1, Err: procfs.ErrShortLine}
		}
		z.Devices++
		z.OrigBytes += vals[0]
		z.CompressedBytes += vals[1]
	}
	return z, nil
}

// Report returns the current average, severity and zram stats.
func (a *SwapAnalyzer) Report() (SwapReport, error) {
	avg := a.Average()
	z, err := a.Zram()
	return SwapReport{Average: avg, Severity: ClassifyThrashing(avg), Zram: z}, err
}
