package tui

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// ThemePreset is a named color scheme plus layout flags.
type ThemePreset struct {
	Name        string
	Description string

	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Danger     lipgloss.Color
	Muted      lipgloss.Color
	Background lipgloss.Color

	ShowBorders bool
	CompactMode bool
}

var (
	// MonitoringTheme is the default dark theme.
	MonitoringTheme = ThemePreset{
		Name:        "monitoring",
		Description: "Dark theme for status monitoring",
		Primary:     lipgloss.Color("#7C3AED"),
		Secondary:   lipgloss.Color("#06B6D4"),
		Success:     lipgloss.Color("#22C55E"),
		Warning:     lipgloss.Color("#EAB308"),
		Danger:      lipgloss.Color("#EF4444"),
		Muted:       lipgloss.Color("#6B7280"),
		Background:  lipgloss.Color("#1E1B2E"),
		ShowBorders: true,
	}

	MinimalTheme = ThemePreset{
		Name:        "minimal",
		Description: "Borderless, compact panels",
		Primary:     lipgloss.Color("#8B5CF6"),
		Secondary:   lipgloss.Color("#67E8F9"),
		Success:     lipgloss.Color("#4ADE80"),
		Warning:     lipgloss.Color("#FCD34D"),
		Danger:      lipgloss.Color("#F87171"),
		Muted:       lipgloss.Color("#9CA3AF"),
		Background:  lipgloss.Color("#0F172A"),
		CompactMode: true,
	}

	FullTheme = ThemePreset{
		Name:        "full",
		Description: "Bright colors with borders",
		Primary:     lipgloss.Color("#A78BFA"),
		Secondary:   lipgloss.Color("#22D3EE"),
		Success:     lipgloss.Color("#34D399"),
		Warning:     lipgloss.Color("#FBBF24"),
		Danger:      lipgloss.Color("#FB7185"),
		Muted:       lipgloss.Color("#D1D5DB"),
		Background:  lipgloss.Color("#1E293B"),
		ShowBorders: true,
	}
)

var allPresets = []ThemePreset{MonitoringTheme, MinimalTheme, FullTheme}

// GetThemePreset returns the preset called name. Unknown names return
// MonitoringTheme.
func GetThemePreset(name string) ThemePreset {
	for _, p := range allPresets {
		if p.Name == name {
			return p
		}
	}
	return MonitoringTheme
}

// AllThemePresets returns a copy of every preset.
func AllThemePresets() []ThemePreset {
	out := make([]ThemePreset, len(allPresets))
	copy(out, allPresets)
	return out
}

// ThemeNames lists the preset names.
func ThemeNames() []string {
	names := make([]string, len(allPresets))
	for i, p := range allPresets {
		names[i] = p.Name
	}
	return names
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// WithColors returns p with named colors replaced. Keys are the lower-case
// field names (primary, secondary, success, warning, danger, muted,
// background); values are #rgb or #rrggbb.
func (p ThemePreset) WithColors(colors map[string]string) (ThemePreset, error) {
	fields := map[string]*lipgloss.Color{
		"primary":    &p.Primary,
		"secondary":  &p.Secondary,
		"success":    &p.Success,
		"warning":    &p.Warning,
		"danger":     &p.Danger,
		"muted":      &p.Muted,
		"background": &p.Background,
	}
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dst, ok := fields[name]
		if !ok {
			return p, fmt.Errorf("tui: unknown theme color %q", name)
		}
		v := colors[name]
		if !hexColor.MatchString(v) {
			return p, fmt.Errorf("tui: theme color %s: %q is not #rgb or #rrggbb", name, v)
		}
		*dst = lipgloss.Color(v)
	}
	return p, nil
}

// styles are the lipgloss styles derived from a preset.
type styles struct {
	preset   ThemePreset
	title    lipgloss.Style
	selected lipgloss.Style
	border   lipgloss.Style
	focused  lipgloss.Style
	header   lipgloss.Style
	footer   lipgloss.Style
	muted    lipgloss.Style
	warning  lipgloss.Style
	danger   lipgloss.Style
	help     lipgloss.Style
}

func newStyles(p ThemePreset) styles {
	return styles{
		preset:   p,
		title:    lipgloss.NewStyle().Bold(true).Foreground(p.Secondary),
		selected: lipgloss.NewStyle().Reverse(true),
		border:   lipgloss.NewStyle().Foreground(p.Muted),
		focused:  lipgloss.NewStyle().Foreground(p.Primary),
		header:   lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		footer:   lipgloss.NewStyle().Foreground(p.Muted),
		muted:    lipgloss.NewStyle().Foreground(p.Muted),
		warning:  lipgloss.NewStyle().Foreground(p.Warning),
		danger:   lipgloss.NewStyle().Foreground(p.Danger),
		help:     lipgloss.NewStyle().Foreground(p.Secondary),
	}
}
