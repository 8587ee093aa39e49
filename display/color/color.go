// Package color decides whether ttop may emit color.
//
// It honours NO_COLOR (https://no-color.org/), TERM=dumb and pipe/redirect
// detection. When color is disabled, lipgloss is set to the Ascii profile
// so all styled renders produce plain text.
package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Env is the slice of the process environment color detection looks at.
type Env struct {
	LookupEnv func(string) (string, bool)
	// IsTerminal reports whether the output descriptor is a TTY.
	IsTerminal func() bool
}

// ProcessEnv reads the real environment and stdout.
func ProcessEnv() Env {
	return Env{
		LookupEnv: os.LookupEnv,
		IsTerminal: func() bool {
			fd := os.Stdout.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
	}
}

// Disabled reports whether color output should be suppressed in env:
//   - NO_COLOR is set to any value
//   - TERM is "dumb"
//   - output is not a terminal
func (e Env) Disabled() bool {
	if _, ok := e.LookupEnv("NO_COLOR"); ok {
		return true
	}
	if term, _ := e.LookupEnv("TERM"); term == "dumb" {
		return true
	}
	return e.IsTerminal != nil && !e.IsTerminal()
}

// ShouldDisableColor applies Disabled to the real process environment.
func ShouldDisableColor() bool {
	return ProcessEnv().Disabled()
}

// Apply configures the global lipgloss renderer based on ShouldDisableColor.
// Returns true if color is enabled.
func Apply() bool {
	if ShouldDisableColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return false
	}
	return true
}

// ForceDisable sets the Ascii profile regardless of the environment, so
// deterministic frames do not depend on the terminal.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
