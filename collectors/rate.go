package collectors

import (
	"math"
	"strconv"
	"time"
)

// hostIntSize is the native int width used to pick default counter widths.
var hostIntSize = strconv.IntSize

// CounterWidth is the bit width of an OS counter.
type CounterWidth uint8

const (
	Width32 CounterWidth = 32
	Width64 CounterWidth = 64
)

// WidthFor picks the counter width for a source on its first read: 64 bits
// on 64-bit hosts or when any observed value already exceeds 32 bits.
func WidthFor(intSize int, values ...uint64) CounterWidth {
	if intSize == 64 {
		return Width64
	}
	for _, v := range values {
		if v > math.MaxUint32 {
			return Width64
		}
	}
	return Width32
}

// span returns 2^width as a float64.
func (w CounterWidth) span() float64 {
	if w == Width32 {
		return float64(1 << 32)
	}
	return math.Pow(2, 64)
}

// CounterRate turns two readings of a monotonic counter into a per-second
// rate. A reading below the previous one is treated as a wrap of a counter
// of the given width, but only when the implied gap is plausible: below
// twenty times the prior rate over the interval when a prior rate is known,
// or below half the counter range otherwise. Implausible gaps are counter
// resets and yield 0. The result is never negative.
func CounterRate(prev, curr uint64, elapsed float64, width CounterWidth, priorRate float64) float64 {
	if elapsed <= 0 || math.IsNaN(elapsed) {
		return 0
	}
	if width == Width32 {
		prev &= math.MaxUint32
		curr &= math.MaxUint32
	}
	if curr >= prev {
		return float64(curr-prev) / elapsed
	}

	var gap uint64
	if width == Width32 {
		gap = (math.MaxUint32 - prev) + curr + 1
	} else {
		// uint64 subtraction wraps modulo 2^64.
		gap = curr - prev
	}

	limit := width.span() / 2
	if priorRate > 0 {
		limit = 2 * priorRate * elapsed * 10
	}
	if float64(gap) >= limit {
		return 0
	}
	return float64(gap) / elapsed
}

// Counter tracks one monotonic OS counter across samples and turns each new
// reading into a rate. Its width is fixed on the first observation.
type Counter struct {
	width  CounterWidth
	prev   uint64
	at     time.Time
	rate   float64
	primed bool
}

// NewCounter returns a Counter of the given width. A zero width is chosen
// on the first Observe via WidthFor.
func NewCounter(width CounterWidth) *Counter {
	return &Counter{width: width}
}

// Observe records v taken at ts and returns the rate since the previous
// observation. The first observation yields 0.
func (c *Counter) Observe(v uint64, ts time.Time) float64 {
	if c.width == 0 {
		c.width = WidthFor(hostIntSize, v)
	}
	if !c.primed {
		c.prev, c.at, c.primed = v, ts, true
		return 0
	}
	r := CounterRate(c.prev, v, ts.Sub(c.at).Seconds(), c.width, c.rate)
	c.prev, c.at, c.rate = v, ts, r
	return r
}

// Rate returns the last computed rate.
func (c *Counter) Rate() float64 { return c.rate }

// Width returns the counter width, or 0 before the first observation when
// none was given.
func (c *Counter) Width() CounterWidth { return c.width }

// Primed reports whether a previous reading exists.
func (c *Counter) Primed() bool { return c.primed }
