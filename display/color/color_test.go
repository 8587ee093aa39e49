package color

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func envOf(vars map[string]string, tty bool) Env {
	return Env{
		LookupEnv: func(k string) (string, bool) {
			v, ok := vars[k]
			return v, ok
		},
		IsTerminal: func() bool { return tty },
	}
}

func TestEnvDisabled(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		tty  bool
		want bool
	}{
		{"tty with xterm", map[string]string{"TERM": "xterm-256color"}, true, false},
		{"NO_COLOR empty still disables", map[string]string{"NO_COLOR": ""}, true, true},
		{"NO_COLOR set", map[string]string{"NO_COLOR": "1", "TERM": "xterm"}, true, true},
		{"dumb terminal", map[string]string{"TERM": "dumb"}, true, true},
		{"piped output", map[string]string{"TERM": "xterm"}, false, true},
		{"no TERM on a tty", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envOf(tt.vars, tt.tty).Disabled(); got != tt.want {
				t.Errorf("Disabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldDisableColor_NOCOLORSet(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if !ShouldDisableColor() {
		t.Error("ShouldDisableColor() = false with NO_COLOR set")
	}
}

func TestShouldDisableColor_TERMDumb(t *testing.T) {
	t.Setenv("TERM", "dumb")
	if !ShouldDisableColor() {
		t.Error("ShouldDisableColor() = false with TERM=dumb")
	}
}

func TestApply_NOCOLORSet(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if Apply() {
		t.Error("Apply() should return false when NO_COLOR is set")
	}
}

func TestForceDisable(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })

	lipgloss.SetColorProfile(termenv.TrueColor)
	ForceDisable()
	if got := lipgloss.ColorProfile(); got != termenv.Ascii {
		t.Errorf("profile = %v, want Ascii", got)
	}
	if out := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Render("x"); out != "x" {
		t.Errorf("styled render = %q, want plain", out)
	}
}
