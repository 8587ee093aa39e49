package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/ttop/app"
)

// LayoutSize represents a responsive breakpoint for terminal width.
type LayoutSize int

const (
	// LayoutCompact is used for terminals narrower than 80 characters.
	LayoutCompact LayoutSize = iota
	// LayoutNormal is used for terminals between 80 and 159 characters wide.
	LayoutNormal
	// LayoutWide is used for terminals 160 characters and wider.
	LayoutWide
)

// DetectLayout returns the appropriate LayoutSize for the given terminal width.
func DetectLayout(width int) LayoutSize {
	switch {
	case width < 80:
		return LayoutCompact
	case width < 160:
		return LayoutNormal
	default:
		return LayoutWide
	}
}

// columns is the grid column count for n panels.
func (s LayoutSize) columns(n int) int {
	switch {
	case s == LayoutCompact:
		return 1
	case s == LayoutWide && n >= 4:
		return 3
	default:
		return 2
	}
}

// cell is one panel's position and size within the grid.
type cell struct {
	Panel   app.Panel
	X, Y    int
	W, H    int
	Focused bool
}

// computeGrid lays the shown panels out top-to-bottom, left-to-right in
// width x height cells. The last column and the last row absorb the
// remainder so the cells tile the area exactly.
func computeGrid(panels []app.Panel, width, height int, focused app.Panel) []cell {
	if len(panels) == 0 || width <= 0 || height <= 0 {
		return nil
	}
	if len(panels) == 1 {
		return []cell{{Panel: panels[0], W: width, H: height, Focused: panels[0] == focused}}
	}

	cols := min(DetectLayout(width).columns(len(panels)), len(panels))
	rows := (len(panels) + cols - 1) / cols
	rowHeight := max(1, height/rows)

	cells := make([]cell, 0, len(panels))
	for i, p := range panels {
		col := i % cols
		row := i / cols
		// A short last row spreads across the full width.
		rowCols := cols
		if row == rows-1 {
			rowCols = len(panels) - row*cols
		}
		cw := width / rowCols
		w := cw
		if col == rowCols-1 {
			w = width - col*cw
		}
		h := rowHeight
		if row == rows-1 {
			h = max(0, height-row*rowHeight)
		}
		cells = append(cells, cell{
			Panel:   p,
			X:       col * cw,
			Y:       row * rowHeight,
			W:       w,
			H:       h,
			Focused: p == focused,
		})
	}
	return cells
}

// fit pads or cuts s to exactly width cells, keeping escape sequences.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if pad := width - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// block fits lines into a width x height rectangle.
func block(lines []string, width, height int) []string {
	out := make([]string, height)
	for i := range out {
		var l string
		if i < len(lines) {
			l = lines[i]
		}
		out[i] = fit(l, width)
	}
	return out
}

// splitLines splits rendered widget output into lines; empty input is no
// lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// box draws a rounded border around body with the title in the top edge.
// Without borders the title takes the first line instead.
func box(title string, body []string, width, height int, focused bool, st styles) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	if !st.preset.ShowBorders || width < 4 || height < 3 {
		head := st.title.Render(title)
		if focused {
			head = st.focused.Render("▸ ") + head
		}
		return block(append([]string{head}, body...), width, height)
	}

	edge := st.border
	if focused {
		edge = st.focused
	}
	inner := width - 2
	label := ansi.Truncate(" "+title+" ", max(0, inner-1), "")
	top := edge.Render("╭─") + st.title.Render(label) +
		edge.Render(strings.Repeat("─", max(0, inner-1-ansi.StringWidth(label)))+"╮")

	lines := make([]string, 0, height)
	lines = append(lines, top)
	side := edge.Render("│")
	for _, l := range block(body, inner, height-2) {
		lines = append(lines, side+l+side)
	}
	lines = append(lines, edge.Render("╰"+strings.Repeat("─", inner)+"╯"))
	return lines
}

// innerSize is the body area of a panel box.
func innerSize(width, height int, st styles) (int, int) {
	if !st.preset.ShowBorders || width < 4 || height < 3 {
		return width, max(0, height-1)
	}
	return width - 2, height - 2
}

// composeGrid joins rendered cells row by row. Every cell in a grid row
// shares Y and H, so lines concatenate directly.
func composeGrid(cells []cell, rendered [][]string, width, height int) []string {
	out := make([]string, height)
	for i, c := range cells {
		for j, l := range rendered[i] {
			y := c.Y + j
			if y >= height || j >= c.H {
				break
			}
			out[y] += l
		}
	}
	for i := range out {
		out[i] = fit(out[i], width)
	}
	return out
}
