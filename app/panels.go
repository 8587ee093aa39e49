package app

import (
	"fmt"
	"strings"
)

// Panel identifies one dashboard panel. Panels are numbered 1..9 on the
// keyboard in this order.
type Panel int

const (
	PanelCPU Panel = iota
	PanelMemory
	PanelDisk
	PanelNetwork
	PanelProcess
	PanelGPU
	PanelSensors
	PanelConnections
	PanelContainers
	panelCount
)

// PanelCount is the number of panels.
const PanelCount = int(panelCount)

var panelNames = [panelCount]string{
	"cpu", "memory", "disk", "network", "process", "gpu", "sensors", "connections", "containers",
}

func (p Panel) String() string {
	if p < 0 || p >= panelCount {
		return fmt.Sprintf("panel(%d)", int(p))
	}
	return panelNames[p]
}

// AllPanels returns every panel in keyboard order.
func AllPanels() []Panel {
	out := make([]Panel, panelCount)
	for i := range out {
		out[i] = Panel(i)
	}
	return out
}

// ParsePanel maps a panel name to a Panel.
func ParsePanel(name string) (Panel, error) {
	for i, n := range panelNames {
		if strings.EqualFold(n, name) {
			return Panel(i), nil
		}
	}
	return 0, fmt.Errorf("app: unknown panel %q", name)
}

// Panels holds the visibility flag of every panel.
type Panels struct {
	visible [panelCount]bool
}

// DefaultPanels shows every panel.
func DefaultPanels() Panels {
	var p Panels
	for i := range p.visible {
		p.visible[i] = true
	}
	return p
}

// Visible reports whether p is shown. Out of range panels are never visible.
func (ps Panels) Visible(p Panel) bool {
	if p < 0 || p >= panelCount {
		return false
	}
	return ps.visible[p]
}

// Set shows or hides p.
func (ps *Panels) Set(p Panel, on bool) {
	if p >= 0 && p < panelCount {
		ps.visible[p] = on
	}
}

// Toggle inverts the visibility of p.
func (ps *Panels) Toggle(p Panel) {
	ps.Set(p, !ps.Visible(p))
}

// Shown returns the visible panels in order.
func (ps Panels) Shown() []Panel {
	var out []Panel
	for i, on := range ps.visible {
		if on {
			out = append(out, Panel(i))
		}
	}
	return out
}
