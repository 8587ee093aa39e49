package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatusLevel is the severity of an indicator.
type StatusLevel int

const (
	StatusOK StatusLevel = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

// StatusConfig holds the configuration for rendering a status indicator.
type StatusConfig struct {
	Level    StatusLevel
	Text     string
	ShowIcon bool
}

var statusIcons = map[StatusLevel]string{
	StatusOK:       "●",
	StatusWarning:  "●",
	StatusCritical: "●",
	StatusUnknown:  "○",
}

var statusColors = map[StatusLevel]lipgloss.Color{
	StatusOK:       ColorOK,
	StatusWarning:  ColorWarning,
	StatusCritical: ColorDanger,
	StatusUnknown:  lipgloss.Color("#6B7280"),
}

// RenderStatus renders a status indicator with an optional colored icon and text.
func RenderStatus(cfg StatusConfig) string {
	style := lipgloss.NewStyle().Foreground(statusColors[cfg.Level])
	if !cfg.ShowIcon {
		return style.Render(cfg.Text)
	}
	icon := style.Render(statusIcons[cfg.Level])
	if cfg.Text == "" {
		return icon
	}
	return icon + " " + cfg.Text
}

// StatusLevelFromString maps the severity names used by the analyzers
// (pressure levels, thrashing severity, sensor status) to a level.
func StatusLevelFromString(status string) StatusLevel {
	switch strings.ToLower(status) {
	case "ok", "normal", "none", "low", "idle":
		return StatusOK
	case "warm", "light", "moderate", "elevated":
		return StatusWarning
	case "hot", "critical", "severe", "high":
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// RenderStatusFromString renders status with its mapped level and an icon.
func RenderStatusFromString(status string) string {
	return RenderStatus(StatusConfig{Level: StatusLevelFromString(status), Text: status, ShowIcon: true})
}
