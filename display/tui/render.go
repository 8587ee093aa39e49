package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/display/render"
	"gitlab.com/tinyland/lab/ttop/internal/format"
)

// helpWidth is the fixed width of the help panel.
const helpWidth = 60

// RenderOptions controls Render.
type RenderOptions struct {
	Theme   ThemePreset
	ShowFPS bool
	// Registry feeds the help overlay; nil uses DefaultRegistry.
	Registry *KeyRegistry
	// Mark wraps each panel's box for mouse hit-testing.
	Mark func(id, s string) string
}

// zoneID names the mouse zone of panel p.
func zoneID(p app.Panel) string { return "panel-" + p.String() }

// Render draws the whole dashboard as exactly height lines of width cells.
// It reads the App and nothing else, so equal App states render to equal
// strings.
func Render(a *app.App, width, height int, opts RenderOptions) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	theme := opts.Theme
	if theme.Name == "" {
		theme = MonitoringTheme
	}
	st := newStyles(theme)

	lines := []string{headerLine(a, width, st, opts.ShowFPS)}
	bodyH := max(0, height-2)
	switch {
	case bodyH == 0:
	case a.ShowHelp():
		reg := opts.Registry
		if reg == nil {
			reg = DefaultRegistry()
		}
		lines = append(lines, helpPanel(reg, width, bodyH, st)...)
	default:
		lines = append(lines, dashboard(a, width, bodyH, st, opts.Mark)...)
	}
	if height > 1 {
		lines = append(lines, footerLine(a, width, st))
	}
	return strings.Join(block(lines, width, height), "\n")
}

func dashboard(a *app.App, width, height int, st styles, mark func(id, s string) string) []string {
	cells := computeGrid(a.Panels().Shown(), width, height, a.Selected())
	if len(cells) == 0 {
		msg := "all panels hidden, press 1-9 to show one"
		body := make([]string, height)
		body[height/2] = strings.Repeat(" ", max(0, (width-len(msg))/2)) + st.muted.Render(msg)
		return block(body, width, height)
	}
	rendered := make([][]string, len(cells))
	for i, c := range cells {
		lines := renderPanel(a, c, st)
		if mark != nil && len(lines) > 0 {
			lines = strings.Split(mark(zoneID(c.Panel), strings.Join(lines, "\n")), "\n")
		}
		rendered[i] = lines
	}
	return composeGrid(cells, rendered, width, height)
}

func headerLine(a *app.App, width int, st styles, showFPS bool) string {
	snap := a.Snapshot()
	left := st.header.Render(" ttop")
	parts := []string{
		"cpu " + format.Fraction(a.CPU().Usage().Total),
		"mem " + format.Percent(a.Memory().Last().Normalize().UsedPercent),
		"procs " + format.Count(uint64(len(a.Process().Processes()))),
	}
	if b := a.Battery().Last(); b.Present {
		parts = append(parts, "bat "+format.Percent(b.Percent))
	}
	if a.Deterministic() {
		parts = append(parts, st.warning.Render("deterministic"))
	}
	left += "  " + strings.Join(parts, "  ")

	var right string
	if showFPS {
		fs := a.FrameStats()
		right = st.muted.Render(fmt.Sprintf("%.1f fps  p95 %s  ", fs.FPS, format.FrameTime(fs.P95)))
	}
	if snap != nil && !snap.Timestamp.IsZero() {
		right += snap.Timestamp.Format("15:04:05") + " "
	}
	gap := width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		return fit(left, width)
	}
	return left + strings.Repeat(" ", gap) + right
}

// footerLine shows the failing collectors, or key hints when all is well.
func footerLine(a *app.App, width int, st styles) string {
	if failing := a.Failing(); len(failing) > 0 {
		parts := make([]string, len(failing))
		for i, id := range failing {
			parts[i] = id + ": " + a.LastError(id).Error()
		}
		return fit(st.warning.Render(" ! "+strings.Join(parts, " | ")), width)
	}
	h := help.New()
	h.Width = width - 1
	return fit(" "+h.View(a.Keys()), width)
}

// helpPanel renders the key registry as a centered box.
func helpPanel(reg *KeyRegistry, width, height int, st styles) []string {
	body := append([]string{""}, reg.helpLines()...)
	panelW := min(helpWidth, width)
	panelH := min(len(body)+2, height)
	panel := box("help", body, panelW, panelH, true, st)

	out := make([]string, 0, height)
	top := max(0, (height-len(panel))/2)
	for range top {
		out = append(out, "")
	}
	pad := strings.Repeat(" ", max(0, (width-panelW)/2))
	for _, l := range panel {
		out = append(out, pad+l)
	}
	return block(out, width, height)
}

// FrameSeries exports every history of a as render series.
func FrameSeries(a *app.App) []render.Series {
	keys := a.HistoryKeys()
	out := make([]render.Series, 0, len(keys))
	for _, k := range keys {
		s := render.Series{Name: k, Values: a.Series(k)}
		switch {
		case k == "cpu" || strings.HasPrefix(k, "cpu.core."):
			s.Max = 1
		case k == "memory" || k == "swap":
			s.Max = 100
		}
		out = append(out, s)
	}
	return out
}
