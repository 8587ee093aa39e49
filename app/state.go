package app

import (
	"maps"
	"slices"

	"gitlab.com/tinyland/lab/ttop/collectors/battery"
	"gitlab.com/tinyland/lab/ttop/collectors/cpu"
	"gitlab.com/tinyland/lab/ttop/collectors/disk"
	"gitlab.com/tinyland/lab/ttop/collectors/memory"
	"gitlab.com/tinyland/lab/ttop/collectors/network"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
	"gitlab.com/tinyland/lab/ttop/collectors/sensors"
	"gitlab.com/tinyland/lab/ttop/metrics"
)

// Typed collector access. In deterministic mode tests use these to Feed
// samples.
func (a *App) CPU() *cpu.Collector            { return a.cpu }
func (a *App) Memory() *memory.Collector      { return a.mem }
func (a *App) Disk() *disk.Collector          { return a.disk }
func (a *App) Network() *network.Collector    { return a.net }
func (a *App) Process() *process.Collector    { return a.proc }
func (a *App) Sensors() *sensors.Collector    { return a.sens }
func (a *App) Battery() *battery.Collector    { return a.batt }
func (a *App) Deterministic() bool            { return a.deterministic }
func (a *App) Keys() KeyMap                   { return a.keys }
func (a *App) Analysis() Analysis             { return a.analysis }
func (a *App) Panels() Panels                 { return a.panels }
func (a *App) Selected() Panel                { return a.selected }
func (a *App) SortColumn() process.SortColumn { return a.sortCol }
func (a *App) Reverse() bool                  { return a.reverse }
func (a *App) ShowHelp() bool                 { return a.showHelp }
func (a *App) ShowTree() bool                 { return a.showTree }

// Snapshot returns the merged metrics of the last CollectMetrics, or nil
// before the first one.
func (a *App) Snapshot() *metrics.Metrics { return a.snapshot }

// Collects is the number of CollectMetrics calls so far.
func (a *App) Collects() int { return a.collects }

// Scroll returns the row offset of panel p.
func (a *App) Scroll(p Panel) int {
	if p < 0 || p >= panelCount {
		return 0
	}
	return min(a.scroll[p], a.maxScroll(p))
}

// SetPageSize sets how many rows PgUp and PgDn move. The renderer calls it
// when the terminal is resized.
func (a *App) SetPageSize(n int) {
	if n > 0 {
		a.pageSize = n
	}
}

// Select makes p the selected panel if it is visible.
func (a *App) Select(p Panel) bool {
	if !a.panels.Visible(p) {
		return false
	}
	a.selected = p
	return true
}

// LastError returns the error of collector or analyzer id on its most
// recent run, or nil.
func (a *App) LastError(id string) error { return a.lastErr[id] }

// Failing lists the ids whose last run failed, sorted.
func (a *App) Failing() []string {
	return slices.Sorted(maps.Keys(a.lastErr))
}

// Disabled reports whether collector id was turned off as unavailable.
func (a *App) Disabled(id string) bool { return a.disabled[id] }

// ProcessRows returns the process list in display order: sorted by the
// current column, or depth-first when the tree view is on.
func (a *App) ProcessRows() []process.TreeNode {
	procs := a.proc.Processes()
	if a.showTree {
		return process.BuildTree(procs)
	}
	sorted := process.Sort(procs, a.sortCol, a.reverse)
	rows := make([]process.TreeNode, len(sorted))
	for i, p := range sorted {
		rows[i] = process.TreeNode{Process: p}
	}
	return rows
}

// rows is the number of scrollable rows panel p currently has.
func (a *App) rows(p Panel) int {
	switch p {
	case PanelCPU:
		return len(a.cpu.Usage().Cores)
	case PanelDisk:
		return len(a.disk.Mounts()) + len(a.disk.Devices())
	case PanelNetwork:
		return len(a.net.Interfaces())
	case PanelProcess:
		return len(a.proc.Processes())
	case PanelGPU:
		return len(a.analysis.GPU)
	case PanelSensors:
		return len(a.sens.Readings())
	case PanelConnections:
		return len(a.analysis.Connections)
	case PanelContainers:
		return len(a.analysis.Containers)
	default:
		return 0
	}
}

func (a *App) maxScroll(p Panel) int {
	return max(0, a.rows(p)-a.pageSize)
}
