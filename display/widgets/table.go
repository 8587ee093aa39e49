package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Alignment controls text alignment within a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column defines a single table column.
type Column struct {
	Title string
	// Width is the fixed cell width. If 0, it is sized to the widest cell.
	Width int
	Align Alignment
	// Flex columns absorb leftover width or give it up first when the
	// table is too wide.
	Flex bool
}

// TableConfig holds the configuration for rendering a table.
type TableConfig struct {
	Columns []Column
	Rows    [][]string
	// MaxWidth caps the rendered line width. Zero means unbounded.
	MaxWidth int
	// Height is the number of data rows shown. Zero shows every row.
	Height int
	// Offset is the first data row shown.
	Offset int
	// Selected is the highlighted row index into Rows, or -1.
	Selected    int
	ShowHeader  bool
	HeaderStyle lipgloss.Style
	RowStyle    lipgloss.Style
	SelectStyle lipgloss.Style
	// Separator is the column separator string (default: " ").
	Separator string
}

// DefaultTableConfig returns a TableConfig with sensible defaults.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		ShowHeader:  true,
		Selected:    -1,
		Separator:   " ",
		HeaderStyle: lipgloss.NewStyle().Bold(true),
		RowStyle:    lipgloss.NewStyle(),
		SelectStyle: lipgloss.NewStyle().Reverse(true),
	}
}

// RenderTable renders a header and the visible window of rows.
func RenderTable(cfg TableConfig) string {
	if len(cfg.Columns) == 0 {
		return ""
	}
	if cfg.Separator == "" {
		cfg.Separator = " "
	}
	widths := columnWidths(cfg.Columns, cfg.Rows, cfg.MaxWidth, lipgloss.Width(cfg.Separator))

	var lines []string
	if cfg.ShowHeader {
		cells := make([]string, len(cfg.Columns))
		for i, col := range cfg.Columns {
			cells[i] = padOrTruncate(col.Title, widths[i], col.Align)
		}
		lines = append(lines, cfg.HeaderStyle.Render(strings.Join(cells, cfg.Separator)))
	}

	start := max(0, min(cfg.Offset, len(cfg.Rows)))
	end := len(cfg.Rows)
	if cfg.Height > 0 {
		end = min(end, start+cfg.Height)
	}
	for r := start; r < end; r++ {
		row := cfg.Rows[r]
		cells := make([]string, len(cfg.Columns))
		for i, col := range cfg.Columns {
			var text string
			if i < len(row) {
				text = row[i]
			}
			cells[i] = padOrTruncate(text, widths[i], col.Align)
		}
		line := strings.Join(cells, cfg.Separator)
		if r == cfg.Selected {
			lines = append(lines, cfg.SelectStyle.Render(line))
		} else {
			lines = append(lines, cfg.RowStyle.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

// padOrTruncate fits s into width cells, marking truncation with an
// ellipsis.
func padOrTruncate(s string, width int, align Alignment) string {
	if width <= 0 {
		return ""
	}
	w := lipgloss.Width(s)
	if w > width {
		return truncate(s, width)
	}
	pad := width - w
	switch align {
	case AlignRight:
		return strings.Repeat(" ", pad) + s
	case AlignCenter:
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}

// truncate cuts s to at most width cells, the last one an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	limit := width - 1
	var sb strings.Builder
	used := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if used+rw > limit {
			break
		}
		sb.WriteRune(r)
		used += rw
	}
	if width == 1 {
		return "…"
	}
	return sb.String() + strings.Repeat(" ", limit-used) + "…"
}

// Truncate is padOrTruncate for a single left-aligned cell.
func Truncate(s string, width int) string { return padOrTruncate(s, width, AlignLeft) }

// columnWidths sizes each column to its content or fixed width, then
// shrinks flex columns (and, failing that, all columns) to fit maxWidth or
// grows the flex columns to fill it.
func columnWidths(cols []Column, rows [][]string, maxWidth, sepWidth int) []int {
	widths := make([]int, len(cols))
	for i, col := range cols {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		w := lipgloss.Width(col.Title)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, lipgloss.Width(row[i]))
			}
		}
		widths[i] = max(w, 1)
	}
	if maxWidth <= 0 {
		return widths
	}

	total := sepWidth * (len(cols) - 1)
	var flex []int
	for i, w := range widths {
		total += w
		if cols[i].Flex {
			flex = append(flex, i)
		}
	}
	switch {
	case total < maxWidth && len(flex) > 0:
		extra := maxWidth - total
		for k, i := range flex {
			share := extra / len(flex)
			if k < extra%len(flex) {
				share++
			}
			widths[i] += share
		}
	case total > maxWidth:
		over := total - maxWidth
		for _, i := range flex {
			cut := min(over, widths[i]-1)
			widths[i] -= cut
			over -= cut
		}
		for i := len(widths) - 1; i >= 0 && over > 0; i-- {
			cut := min(over, widths[i]-1)
			widths[i] -= cut
			over -= cut
		}
	}
	return widths
}
