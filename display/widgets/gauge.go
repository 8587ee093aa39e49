package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Gauge colors by threshold band.
var (
	ColorOK      = lipgloss.Color("#22C55E")
	ColorWarning = lipgloss.Color("#EAB308")
	ColorDanger  = lipgloss.Color("#EF4444")
)

// GaugeConfig controls a horizontal bar gauge.
type GaugeConfig struct {
	// Width is the bar width in cells, not counting label and value text.
	Width int
	// Percent is the value from 0 to 100.
	Percent float64
	Label   string
	// Value replaces the default "XX%" text when set.
	Value       string
	ShowPercent bool
	// ThresholdWarning is the % at which color changes to yellow (default: 70).
	ThresholdWarning float64
	// ThresholdDanger is the % at which color changes to red (default: 90).
	ThresholdDanger float64
	FilledChar      string
	EmptyChar       string
}

// DefaultGaugeConfig returns a GaugeConfig with sensible defaults.
func DefaultGaugeConfig() GaugeConfig {
	return GaugeConfig{
		Width:            20,
		ShowPercent:      true,
		ThresholdWarning: 70,
		ThresholdDanger:  90,
		FilledChar:       "█",
		EmptyChar:        "░",
	}
}

// GaugeColor returns the band color of percent.
func GaugeColor(percent, warning, danger float64) lipgloss.Color {
	if warning <= 0 {
		warning = 70
	}
	if danger <= 0 {
		danger = 90
	}
	switch {
	case percent >= danger:
		return ColorDanger
	case percent >= warning:
		return ColorWarning
	default:
		return ColorOK
	}
}

// RenderGauge renders [Label] [████░░░░] [XX%].
func RenderGauge(cfg GaugeConfig) string {
	percent := cfg.Percent
	if math.IsNaN(percent) {
		percent = 0
	}
	percent = math.Max(0, math.Min(100, percent))

	filledChar := cfg.FilledChar
	if filledChar == "" {
		filledChar = "█"
	}
	emptyChar := cfg.EmptyChar
	if emptyChar == "" {
		emptyChar = "░"
	}
	width := cfg.Width
	if width <= 0 {
		width = 20
	}

	filled := int(math.Round(percent / 100 * float64(width)))
	style := lipgloss.NewStyle().Foreground(GaugeColor(percent, cfg.ThresholdWarning, cfg.ThresholdDanger))
	bar := style.Render(strings.Repeat(filledChar, filled)) + strings.Repeat(emptyChar, width-filled)

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(bar)
	switch {
	case cfg.Value != "":
		sb.WriteString(" ")
		sb.WriteString(cfg.Value)
	case cfg.ShowPercent:
		fmt.Fprintf(&sb, " %3.0f%%", percent)
	}
	return sb.String()
}

// RenderMiniGauge renders a bare bar with the default thresholds.
func RenderMiniGauge(percent float64, width int) string {
	return RenderGauge(GaugeConfig{Width: width, Percent: percent})
}

// Segment is one part of a stacked bar.
type Segment struct {
	// Fraction of the whole bar, in [0,1].
	Fraction float64
	Color    lipgloss.Color
	Char     string
}

// RenderStacked draws segments left to right into width cells using
// largest-remainder rounding, so the filled cells never exceed width and
// a full set of fractions fills it exactly.
func RenderStacked(segs []Segment, width int) string {
	if width <= 0 {
		return ""
	}
	cells := make([]int, len(segs))
	rems := make([]float64, len(segs))
	used := 0
	var total float64
	for i, s := range segs {
		f := s.Fraction
		if !(f > 0) {
			continue
		}
		total += f
		exact := f * float64(width)
		cells[i] = int(exact)
		rems[i] = exact - float64(cells[i])
		used += cells[i]
	}
	target := min(width, int(math.Round(math.Min(total, 1)*float64(width))))
	for used < target {
		best := -1
		for i := range rems {
			if rems[i] > 0 && (best < 0 || rems[i] > rems[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		cells[best]++
		rems[best] = 0
		used++
	}
	for used > width {
		for i := len(cells) - 1; i >= 0 && used > width; i-- {
			if cells[i] > 0 {
				cells[i]--
				used--
			}
		}
	}

	var sb strings.Builder
	for i, s := range segs {
		if cells[i] == 0 {
			continue
		}
		ch := s.Char
		if ch == "" {
			ch = "█"
		}
		part := strings.Repeat(ch, cells[i])
		if s.Color != "" {
			part = lipgloss.NewStyle().Foreground(s.Color).Render(part)
		}
		sb.WriteString(part)
	}
	sb.WriteString(strings.Repeat(" ", width-used))
	return sb.String()
}
