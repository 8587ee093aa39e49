package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// Bytes renders n in IEC units ("1.5 GiB").
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// BytesF is Bytes for float gauges. Negative, NaN and infinite values
// render as "0 B".
func BytesF(f float64) string {
	if !(f > 0) || math.IsInf(f, 1) {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(uint64(f))
}

// Rate renders a bytes-per-second rate ("12 MiB/s").
func Rate(bytesPerSec float64) string {
	return BytesF(bytesPerSec) + "/s"
}

// Bits renders a bytes-per-second rate as SI bits per second ("96 Mbps").
func Bits(bytesPerSec float64) string {
	if !(bytesPerSec > 0) || math.IsInf(bytesPerSec, 1) {
		return "0 bps"
	}
	v, prefix := humanize.ComputeSI(bytesPerSec * 8)
	return fmt.Sprintf("%s %sbps", humanize.FtoaWithDigits(v, 1), prefix)
}

// Count renders a counter with thousands separators.
func Count(n uint64) string {
	return humanize.Comma(int64(min(n, math.MaxInt64)))
}

// Percent renders a percentage in [0,100] with one decimal.
func Percent(p float64) string {
	if math.IsNaN(p) {
		p = 0
	}
	return fmt.Sprintf("%.1f%%", p)
}

// Fraction renders a fraction in [0,1] as a percentage.
func Fraction(f float64) string {
	return Percent(f * 100)
}

// Ellipsis truncates s to maxWidth runes, ending in "..." when cut. Widths
// under 4 are hard-truncated.
func Ellipsis(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}
	if maxWidth < 4 {
		return string(runes[:maxWidth])
	}
	return string(runes[:maxWidth-3]) + "..."
}

// Key turns free text into a metric-name segment: lower case, with runs of
// anything but letters and digits folded to a single underscore.
func Key(s string) string {
	var sb strings.Builder
	under := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			under = false
			continue
		}
		if !under && sb.Len() > 0 {
			sb.WriteByte('_')
			under = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}
