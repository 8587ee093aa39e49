package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks are the eight block heights, lowest first.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SparklineConfig controls a one-row history chart.
type SparklineConfig struct {
	// Data points to render, oldest first.
	Data []float64
	// Width is the number of cells. If 0, uses len(Data). Short data is
	// right-aligned so the newest point is always at the right edge.
	Width int
	// Max is the value drawn as a full block. If Max <= 0 the chart scales
	// to the largest point. The floor is always zero.
	Max float64
	// Label is optional text shown before the sparkline.
	Label string
	Color lipgloss.Color
}

// RenderSparkline renders a unicode sparkline chart.
func RenderSparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}
	data := cfg.Data
	width := cfg.Width
	if width <= 0 {
		width = len(data)
	}
	if width < len(data) {
		data = data[len(data)-width:]
	}
	ceiling := scaleMax(data, cfg.Max)

	var sb strings.Builder
	if width > len(data) {
		sb.WriteString(strings.Repeat(" ", width-len(data)))
	}
	for _, v := range data {
		sb.WriteRune(sparkBlocks[level(v, ceiling, len(sparkBlocks)-1)])
	}
	out := sb.String()
	if cfg.Color != "" {
		out = lipgloss.NewStyle().Foreground(cfg.Color).Render(out)
	}
	if cfg.Label != "" {
		out = cfg.Label + " " + out
	}
	return out
}

// scaleMax returns limit if positive, otherwise the largest point. An
// all-zero series scales to 1 so it renders as a flat baseline.
func scaleMax(data []float64, limit float64) float64 {
	if limit > 0 {
		return limit
	}
	for _, v := range data {
		if v > limit {
			limit = v
		}
	}
	if limit <= 0 {
		return 1
	}
	return limit
}

// level maps v in [0, ceiling] onto 0..steps. NaN and negatives map to 0.
func level(v, ceiling float64, steps int) int {
	if !(v > 0) {
		return 0
	}
	f := v / ceiling
	if f >= 1 {
		return steps
	}
	return int(f*float64(steps) + 0.5)
}
