package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestGetThemePreset(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"monitoring", "monitoring"},
		{"minimal", "minimal"},
		{"full", "full"},
		{"nonexistent", "monitoring"},
		{"", "monitoring"},
	}
	for _, tt := range tests {
		if got := GetThemePreset(tt.name).Name; got != tt.want {
			t.Errorf("GetThemePreset(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAllThemePresetsIsACopy(t *testing.T) {
	presets := AllThemePresets()
	if len(presets) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(presets))
	}
	presets[0].Name = "mutated"
	if AllThemePresets()[0].Name == "mutated" {
		t.Error("AllThemePresets should return a copy")
	}
	if got := strings.Join(ThemeNames(), ","); got != "monitoring,minimal,full" {
		t.Errorf("ThemeNames() = %s", got)
	}
}

func TestWithColors(t *testing.T) {
	p, err := MonitoringTheme.WithColors(map[string]string{"primary": "#ff0000", "muted": "#abc"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Primary != lipgloss.Color("#ff0000") || p.Muted != lipgloss.Color("#abc") {
		t.Errorf("colors not applied: %+v", p)
	}
	if MonitoringTheme.Primary != lipgloss.Color("#7C3AED") {
		t.Error("preset was mutated")
	}

	for _, bad := range []map[string]string{
		{"chartreuse": "#000000"},
		{"primary": "red"},
		{"danger": "#12345"},
	} {
		if _, err := MonitoringTheme.WithColors(bad); err == nil {
			t.Errorf("WithColors(%v) accepted", bad)
		}
	}
}
