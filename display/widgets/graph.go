package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// graphCells are the partial fills of one graph cell, empty first.
var graphCells = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// GraphConfig controls a multi-row history chart.
type GraphConfig struct {
	Data   []float64
	Width  int
	Height int
	// Max is the value that fills a column. If Max <= 0 the graph scales to
	// the largest point.
	Max   float64
	Color lipgloss.Color
}

// RenderGraph draws Data as Height rows of Width cells, newest point at the
// right edge, each column filled bottom-up with eighth-block precision.
func RenderGraph(cfg GraphConfig) string {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ""
	}
	data := cfg.Data
	if len(data) > cfg.Width {
		data = data[len(data)-cfg.Width:]
	}
	ceiling := scaleMax(data, cfg.Max)
	steps := cfg.Height * 8
	pad := cfg.Width - len(data)

	levels := make([]int, len(data))
	for i, v := range data {
		levels[i] = level(v, ceiling, steps)
	}

	style := lipgloss.NewStyle()
	if cfg.Color != "" {
		style = style.Foreground(cfg.Color)
	}
	rows := make([]string, cfg.Height)
	for r := range rows {
		base := (cfg.Height - 1 - r) * 8
		var sb strings.Builder
		sb.WriteString(strings.Repeat(" ", pad))
		for _, l := range levels {
			fill := min(max(l-base, 0), 8)
			sb.WriteRune(graphCells[fill])
		}
		rows[r] = sb.String()
		if cfg.Color != "" {
			rows[r] = style.Render(rows[r])
		}
	}
	return strings.Join(rows, "\n")
}
