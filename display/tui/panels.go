package tui

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/ttop/analyzers"
	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/collectors/cpu"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
	"gitlab.com/tinyland/lab/ttop/display/widgets"
	"gitlab.com/tinyland/lab/ttop/internal/format"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

// panelFunc renders the body of a panel into at most h lines of w cells.
type panelFunc func(a *app.App, w, h int, st styles) []string

var panelBodies = map[app.Panel]panelFunc{
	app.PanelCPU:         cpuBody,
	app.PanelMemory:      memoryBody,
	app.PanelDisk:        diskBody,
	app.PanelNetwork:     networkBody,
	app.PanelProcess:     processBody,
	app.PanelGPU:         gpuBody,
	app.PanelSensors:     sensorsBody,
	app.PanelConnections: connectionsBody,
	app.PanelContainers:  containersBody,
}

// panelTitle is "N name" plus panel-specific state.
func panelTitle(a *app.App, p app.Panel) string {
	title := strconv.Itoa(int(p)+1) + " " + p.String()
	switch p {
	case app.PanelProcess:
		arrow := "▼"
		if a.Reverse() {
			arrow = "▲"
		}
		title += " sort " + a.SortColumn().String() + arrow
		if a.ShowTree() {
			title += " tree"
		}
	case app.PanelNetwork:
		if primary := a.Network().Primary(); primary != "" {
			title += " " + primary
		}
	}
	return title
}

// renderPanel draws panel p as a w x h box. A panel whose source is
// disabled says so; one whose source failed on the last tick is greyed
// under a one-line diagnostic.
func renderPanel(a *app.App, c cell, st styles) []string {
	iw, ih := innerSize(c.W, c.H, st)
	title := panelTitle(a, c.Panel)
	if iw <= 0 || ih <= 0 {
		return box(title, nil, c.W, c.H, c.Focused, st)
	}
	id := c.Panel.String()
	if a.Disabled(id) {
		return box(title, []string{st.muted.Render(fit(unavailableText, iw))}, c.W, c.H, c.Focused, st)
	}
	err := a.LastError(id)
	if err != nil {
		ih--
	}
	var body []string
	if fn := panelBodies[c.Panel]; fn != nil && ih > 0 {
		body = fn(a, iw, ih, st)
	}
	if err != nil {
		body = append([]string{diagnostic(err, iw, st)}, greyed(body, st)...)
	}
	return box(title, body, c.W, c.H, c.Focused, st)
}

const unavailableText = "not available on this host"

// diagnostic is err on one line of w cells.
func diagnostic(err error, w int, st styles) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return st.danger.Render(ansi.Truncate("! "+msg, w, "…"))
}

// greyed drops the colors of lines and renders them muted.
func greyed(lines []string, st styles) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = st.muted.Render(ansi.Strip(l))
	}
	return out
}

func gauge(m *metrics.Metrics, key string) float64 {
	if m == nil {
		return 0
	}
	v, _ := m.Gauge(key)
	return v
}

// meter is "label [bar] value" sized to w.
func meter(label string, percent float64, value string, w int) string {
	const labelW = 6
	bar := w - labelW - 1 - len(value) - 1
	if bar < 4 {
		return fit(label, labelW) + " " + value
	}
	return widgets.RenderGauge(widgets.GaugeConfig{
		Label:   fit(label, labelW),
		Width:   bar,
		Percent: percent,
		Value:   value,
	})
}

// severity colors text by an analyzer severity name.
func severity(level, text string) string {
	return widgets.RenderStatus(widgets.StatusConfig{Level: widgets.StatusLevelFromString(level), Text: text})
}

// window returns at most n items of rows starting at off.
func window[T any](rows []T, off, n int) []T {
	off = max(0, min(off, len(rows)))
	end := min(len(rows), off+max(0, n))
	return rows[off:end]
}

var cpuColors = [len(cpu.Categories)]lipgloss.Color{
	"#22C55E", "#84CC16", "#EF4444", "", "#EAB308", "#A855F7", "#EC4899", "#06B6D4",
}

func cpuBody(a *app.App, w, h int, st styles) []string {
	u := a.CPU().Usage()
	snap := a.Snapshot()

	lines := []string{meter("total", u.Total*100, format.Fraction(u.Total), w)}

	info := fmt.Sprintf("load %.2f %.2f %.2f",
		gauge(snap, "cpu.load.1"), gauge(snap, "cpu.load.5"), gauge(snap, "cpu.load.15"))
	if f := gauge(snap, "cpu.freq.mhz"); f > 0 {
		info += fmt.Sprintf("  %.0f MHz", f)
	}
	if up := gauge(snap, "cpu.uptime.secs"); up > 0 {
		info += "  up " + format.Uptime(time.Duration(up*float64(time.Second)))
	}
	lines = append(lines, st.muted.Render(info))

	segs := make([]widgets.Segment, 0, len(cpu.Categories))
	for i, name := range cpu.Categories {
		if name == "idle" {
			continue
		}
		segs = append(segs, widgets.Segment{Fraction: u.Categories[i], Color: cpuColors[i]})
	}
	lines = append(lines, widgets.RenderStacked(segs, w))

	if psi := a.Analysis().PSI; psi != nil && len(lines) < h {
		parts := make([]string, 0, 3)
		for _, r := range psi.Resources() {
			parts = append(parts, fmt.Sprintf("%s %.1f%% %s", r.Resource, r.Some.Avg10, r.Level))
		}
		lines = append(lines, st.muted.Render("psi "+strings.Join(parts, "  ")))
	}

	cores := make([]string, len(u.Cores))
	for i, v := range u.Cores {
		label := "c" + strconv.Itoa(i)
		line := meter(label, v*100, format.Fraction(v), w)
		if hist := a.CoreHistory(i); hist != nil && w >= 60 {
			spark := widgets.RenderSparkline(widgets.SparklineConfig{Data: hist.Values(), Width: 12, Max: 1})
			line = meter(label, v*100, format.Fraction(v), w-13) + " " + spark
		}
		cores[i] = line
	}

	remaining := h - len(lines)
	coreH := min(len(cores), remaining/2)
	graphH := remaining - coreH
	if graphH < 2 {
		coreH, graphH = remaining, 0
	}
	if graphH > 0 {
		lines = append(lines, splitLines(widgets.RenderGraph(widgets.GraphConfig{
			Data:   a.CPUHistory().Values(),
			Width:  w,
			Height: graphH,
			Max:    1,
			Color:  st.preset.Secondary,
		}))...)
	}
	return append(lines, window(cores, a.Scroll(app.PanelCPU), coreH)...)
}

func memoryBody(a *app.App, w, h int, st styles) []string {
	last := a.Memory().Last()
	b := last.Normalize()
	pct := func(n uint64) float64 {
		if b.Total == 0 {
			return 0
		}
		return float64(n) / float64(b.Total) * 100
	}

	lines := []string{
		meter("used", b.UsedPercent, usedOf(b.Used, b.Total), w),
		meter("cache", pct(b.Cached+b.Buffers), format.Bytes(b.Cached+b.Buffers), w),
		meter("avail", pct(min(last.Available, b.Total)), format.Bytes(min(last.Available, b.Total)), w),
		meter("free", pct(b.Free), format.Bytes(b.Free), w),
		meter("swap", b.SwapPercent, usedOf(b.SwapUsed, b.SwapTotal), w),
	}

	an := a.Analysis()
	status := fmt.Sprintf("paging %.0f/s  thrash %s", an.Swap.Average, an.Swap.Severity)
	lines = append(lines, severity(an.Swap.Severity.String(), status))
	if z := an.Swap.Zram; z.Devices > 0 {
		lines = append(lines, st.muted.Render(fmt.Sprintf("zram %d dev %s -> %s (%.1fx)",
			z.Devices, format.Bytes(z.OrigBytes), format.Bytes(z.CompressedBytes), z.Ratio())))
	}

	if graphH := h - len(lines); graphH >= 2 {
		lines = append(lines, splitLines(widgets.RenderGraph(widgets.GraphConfig{
			Data:   a.MemoryHistory().Values(),
			Width:  w,
			Height: graphH,
			Max:    100,
			Color:  st.preset.Primary,
		}))...)
	}
	return lines
}

func diskBody(a *app.App, w, h int, st styles) []string {
	var rows []string
	for _, m := range a.Disk().Mounts() {
		var io string
		if d, ok := a.Disk().Device(m.IODevice); ok && w >= 60 {
			io = " r " + format.Rate(d.ReadRate) + " w " + format.Rate(d.WriteRate)
		}
		rows = append(rows, meter(filepath.Base(m.MountPoint), m.UsedPercent(), usedOf(m.Used, m.Total), w-ansi.StringWidth(io))+io)
	}
	latency := make(map[string]analyzers.DiskLatency)
	for _, l := range a.Analysis().DiskLatency {
		latency[l.Device] = l
	}
	for _, d := range a.Disk().Devices() {
		line := fmt.Sprintf("%-8s r %s w %s busy %3.0f%%",
			d.Name, format.Rate(d.ReadRate), format.Rate(d.WriteRate), d.BusyPercent)
		if l, ok := latency[d.Name]; ok {
			line += fmt.Sprintf(" %s %s", format.Duration(time.Duration(l.Wait*float64(time.Second))), l.Workload)
		}
		if hist := a.DiskHistory(d.Name); hist != nil && w-ansi.StringWidth(line) > 10 {
			line = fit(line, w-9) + " " + widgets.RenderSparkline(widgets.SparklineConfig{Data: hist.Values(), Width: 8})
		}
		rows = append(rows, line)
	}

	lines := window(rows, a.Scroll(app.PanelDisk), h)
	if res := a.Analysis().Storage; res != nil && h-len(lines) >= 4 {
		lines = append(lines, st.muted.Render(fmt.Sprintf("scan %s files %s", format.Count(uint64(res.Files)), format.Bytes(uint64(max(0, res.Bytes))))))
		for _, an := range res.Anomalies {
			if h-len(lines) <= 3 {
				break
			}
			lines = append(lines, st.warning.Render(fmt.Sprintf("! %s %s z=%.1f", format.Bytes(uint64(max(0, an.Size))), an.Path, an.Z)))
		}
		lines = append(lines, treemap(res.Largest, w, h-len(lines))...)
	}
	return lines
}

func usedOf(used, total uint64) string { return format.Bytes(used) + "/" + format.Bytes(total) }

// treemapGlyphs marks tiles by file category.
var treemapGlyphs = []rune("·▓▒░█▚▞▤")

// treemap draws the largest files as a character treemap, one glyph per
// category and the file name in each tile wide enough to hold it.
func treemap(files []analyzers.FileSize, w, h int) []string {
	if len(files) == 0 || w <= 0 || h <= 0 {
		return nil
	}
	grid := make([][]rune, h)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", w))
	}
	for _, r := range analyzers.TreemapFiles(files, analyzers.Rect{W: float64(w), H: float64(h)}, 16) {
		x0, y0 := int(math.Round(r.Rect.X)), int(math.Round(r.Rect.Y))
		x1, y1 := int(math.Round(r.Rect.X+r.Rect.W)), int(math.Round(r.Rect.Y+r.Rect.H))
		glyph := treemapGlyphs[int(r.Category)%len(treemapGlyphs)]
		for y := max(0, y0); y < min(h, y1); y++ {
			for x := max(0, x0); x < min(w, x1); x++ {
				grid[y][x] = glyph
			}
		}
		name := []rune(filepath.Base(r.Path))
		if y0 < h && x1-x0 > len(name)+1 && y1 > y0 {
			copy(grid[y0][x0:], name)
		}
	}
	out := make([]string, h)
	for y := range grid {
		out[y] = string(grid[y])
	}
	return out
}

func networkBody(a *app.App, w, h int, st styles) []string {
	ifaces := a.Network().Interfaces()
	var lines []string
	if primary := a.Network().Primary(); primary != "" && h >= 6 {
		rx, tx := a.NetHistory(primary)
		graphH := max(1, (h-2)/4)
		if rx != nil {
			lines = append(lines, st.muted.Render("rx "+format.Rate(last(rx.Values()))))
			lines = append(lines, splitLines(widgets.RenderGraph(widgets.GraphConfig{Data: rx.Values(), Width: w, Height: graphH, Color: st.preset.Success}))...)
		}
		if tx != nil {
			lines = append(lines, st.muted.Render("tx "+format.Rate(last(tx.Values()))))
			lines = append(lines, splitLines(widgets.RenderGraph(widgets.GraphConfig{Data: tx.Values(), Width: w, Height: graphH, Color: st.preset.Warning}))...)
		}
	}

	rows := make([][]string, len(ifaces))
	for i, s := range ifaces {
		rows[i] = []string{s.Name, format.Rate(s.RxRate), format.Rate(s.TxRate), format.Bytes(s.RxBytes), format.Bytes(s.TxBytes),
			strconv.FormatFloat(s.RxErrsRate+s.TxErrsRate, 'f', 0, 64)}
	}
	table := widgets.RenderTable(widgets.TableConfig{
		Columns: []widgets.Column{
			{Title: "IFACE", Flex: true},
			{Title: "RX/s", Width: 10, Align: widgets.AlignRight},
			{Title: "TX/s", Width: 10, Align: widgets.AlignRight},
			{Title: "RX", Width: 9, Align: widgets.AlignRight},
			{Title: "TX", Width: 9, Align: widgets.AlignRight},
			{Title: "ERR/s", Width: 5, Align: widgets.AlignRight},
		},
		Rows:        rows,
		MaxWidth:    w,
		Height:      max(0, h-len(lines)-1),
		Offset:      a.Scroll(app.PanelNetwork),
		Selected:    -1,
		ShowHeader:  true,
		HeaderStyle: st.header,
	})
	return append(lines, splitLines(table)...)
}

func last(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

func processBody(a *app.App, w, h int, st styles) []string {
	nodes := a.ProcessRows()
	showIO := w >= 90
	showHist := w >= 100
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		p := n.Process
		row := []string{
			strconv.Itoa(p.PID),
			p.User,
			treePrefix(n, a.ShowTree()) + p.Name,
			p.State,
			fmt.Sprintf("%.1f", p.CPUPercent),
			fmt.Sprintf("%.1f", p.MemPercent),
			strconv.Itoa(p.Threads),
			format.Bytes(p.RSS),
		}
		if showIO {
			row = append(row, format.Rate(p.ReadRate+p.WriteRate))
		}
		if showHist {
			var spark string
			if hist := a.ProcessHistory(p.PID); hist != nil {
				spark = widgets.RenderSparkline(widgets.SparklineConfig{Data: hist.Values(), Width: 10, Max: 100})
			}
			row = append(row, spark)
		}
		rows[i] = row
	}
	cols := []widgets.Column{
		{Title: "PID", Width: 7, Align: widgets.AlignRight},
		{Title: "USER", Width: 9},
		{Title: "NAME", Flex: true},
		{Title: "S", Width: 1},
		{Title: "CPU%", Width: 6, Align: widgets.AlignRight},
		{Title: "MEM%", Width: 5, Align: widgets.AlignRight},
		{Title: "THR", Width: 4, Align: widgets.AlignRight},
		{Title: "RSS", Width: 9, Align: widgets.AlignRight},
	}
	if showIO {
		cols = append(cols, widgets.Column{Title: "IO/s", Width: 10, Align: widgets.AlignRight})
	}
	if showHist {
		cols = append(cols, widgets.Column{Title: "HISTORY", Width: 10})
	}
	return splitLines(widgets.RenderTable(widgets.TableConfig{
		Columns:     cols,
		Rows:        rows,
		MaxWidth:    w,
		Height:      h - 1,
		Offset:      a.Scroll(app.PanelProcess),
		Selected:    -1,
		ShowHeader:  true,
		HeaderStyle: st.header,
	}))
}

// treePrefix draws the branch glyphs for a tree row.
func treePrefix(n process.TreeNode, tree bool) string {
	if !tree || n.Depth == 0 {
		return ""
	}
	branch := "├─"
	if n.Last {
		branch = "└─"
	}
	return strings.Repeat("  ", n.Depth-1) + branch
}

func gpuBody(a *app.App, w, h int, st styles) []string {
	procs := a.Analysis().GPU
	if len(procs) == 0 {
		return []string{st.muted.Render("no gpu clients")}
	}
	rows := make([][]string, len(procs))
	for i, p := range procs {
		rows[i] = []string{strconv.Itoa(p.PID), p.Name, p.Driver, fmt.Sprintf("%.1f", p.Busy), format.Bytes(p.MemoryBytes)}
	}
	return splitLines(widgets.RenderTable(widgets.TableConfig{
		Columns: []widgets.Column{
			{Title: "PID", Width: 7, Align: widgets.AlignRight},
			{Title: "NAME", Flex: true},
			{Title: "DRIVER", Width: 8},
			{Title: "BUSY%", Width: 6, Align: widgets.AlignRight},
			{Title: "MEM", Width: 9, Align: widgets.AlignRight},
		},
		Rows:        rows,
		MaxWidth:    w,
		Height:      h - 1,
		Offset:      a.Scroll(app.PanelGPU),
		Selected:    -1,
		ShowHeader:  true,
		HeaderStyle: st.header,
	}))
}

func sensorsBody(a *app.App, w, h int, st styles) []string {
	report := a.Analysis().Sensors
	head := fmt.Sprintf("health %d  worst %s", report.Score, report.Worst)
	lines := []string{severity(report.Worst.String(), head)}

	health := make(map[string]analyzers.SensorHealth, len(report.Readings))
	for _, r := range report.Readings {
		health[r.Reading.Key()] = r
	}
	var rows []string
	for _, r := range a.Sensors().Readings() {
		label := r.Chip + "/" + r.Label
		value := fmt.Sprintf("%.1f %s", r.Value, r.Kind.Unit())
		status := ""
		if sh, ok := health[r.Key()]; ok {
			status = widgets.RenderStatusFromString(sh.Status.String())
		}
		rows = append(rows, fit(label, max(1, w-24))+" "+fit(value, 12)+" "+status)
	}
	if batt := a.Battery().Last(); batt.Present {
		line := meter("bat", batt.Percent, format.Percent(batt.Percent)+" "+batt.State.String(), w)
		lines = append(lines, line)
	}
	return append(lines, window(rows, a.Scroll(app.PanelSensors), h-len(lines))...)
}

func connectionsBody(a *app.App, w, h int, st styles) []string {
	conns := a.Analysis().Connections
	rows := make([][]string, len(conns))
	for i, c := range conns {
		remote := ""
		if c.Remote.IsValid() && !c.Remote.Addr().IsUnspecified() {
			remote = c.Remote.String()
		}
		pid := ""
		if c.PID > 0 {
			pid = strconv.Itoa(c.PID)
		}
		rows[i] = []string{c.Proto, c.Local.String(), remote, c.State, pid, c.Service()}
	}
	return splitLines(widgets.RenderTable(widgets.TableConfig{
		Columns: []widgets.Column{
			{Title: "PROTO", Width: 5},
			{Title: "LOCAL", Flex: true},
			{Title: "REMOTE", Flex: true},
			{Title: "STATE", Width: 11},
			{Title: "PID", Width: 7, Align: widgets.AlignRight},
			{Title: "SVC", Width: 8},
		},
		Rows:        rows,
		MaxWidth:    w,
		Height:      h - 1,
		Offset:      a.Scroll(app.PanelConnections),
		Selected:    -1,
		ShowHeader:  true,
		HeaderStyle: st.header,
	}))
}

func containersBody(a *app.App, w, h int, st styles) []string {
	list := a.Analysis().Containers
	if len(list) == 0 {
		return []string{st.muted.Render("no containers")}
	}
	rows := make([][]string, len(list))
	for i, c := range list {
		limit := "-"
		if c.MemoryLimit > 0 {
			limit = format.Bytes(c.MemoryLimit)
		}
		rows[i] = []string{c.ShortID(), c.Runtime, fmt.Sprintf("%.1f", c.CPUPercent), format.Bytes(c.MemoryBytes), limit, strconv.FormatUint(c.Pids, 10)}
	}
	return splitLines(widgets.RenderTable(widgets.TableConfig{
		Columns: []widgets.Column{
			{Title: "ID", Width: 12},
			{Title: "RUNTIME", Flex: true},
			{Title: "CPU%", Width: 6, Align: widgets.AlignRight},
			{Title: "MEM", Width: 9, Align: widgets.AlignRight},
			{Title: "LIMIT", Width: 9, Align: widgets.AlignRight},
			{Title: "PIDS", Width: 5, Align: widgets.AlignRight},
		},
		Rows:        rows,
		MaxWidth:    w,
		Height:      h - 1,
		Offset:      a.Scroll(app.PanelContainers),
		Selected:    -1,
		ShowHeader:  true,
		HeaderStyle: st.header,
	}))
}
