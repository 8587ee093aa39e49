package tui

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/ttop/app"
)

// hostApp is a live App over a temp /proc holding only stat and meminfo
// and an empty /sys.
func hostApp(t *testing.T) (*app.App, string) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("procfs back-ends are linux only")
	}
	procRoot := t.TempDir()
	put(t, filepath.Join(procRoot, "stat"), "cpu  100 0 100 800 0 0 0 0\ncpu0 100 0 100 800 0 0 0 0\n")
	put(t, filepath.Join(procRoot, "meminfo"), "MemTotal: 8000 kB\nMemFree: 2000 kB\nMemAvailable: 4000 kB\n")

	panels := app.DefaultPanels()
	panels.Set(app.PanelGPU, false)
	a := app.New(app.Options{ProcRoot: procRoot, SysRoot: t.TempDir(), Panels: &panels})
	t.Cleanup(a.Close)
	a.CollectMetrics(context.Background())
	return a, procRoot
}

func put(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func stripped(lines []string) string {
	return ansi.Strip(strings.Join(lines, "\n"))
}

func TestFailedPanelShowsDiagnostic(t *testing.T) {
	a, procRoot := hostApp(t)
	st := newStyles(MonitoringTheme)
	c := cell{Panel: app.PanelCPU, W: 70, H: 12}
	put(t, filepath.Join(procRoot, "stat"), "cpu  a b c d\n")
	a.CollectMetrics(context.Background())

	iw, ih := innerSize(c.W, c.H, st)
	body := cpuBody(a, iw, ih-1, st)

	lines := renderPanel(a, c, st)
	if len(lines) != c.H {
		t.Fatalf("lines = %d, want %d", len(lines), c.H)
	}
	if got := ansi.Strip(lines[1]); !strings.Contains(got, "! cpu: parse") {
		t.Errorf("first body line = %q, want the cpu diagnostic", got)
	}
	out := stripped(lines)
	for _, l := range body {
		if l = strings.TrimSpace(ansi.Strip(l)); l != "" && !strings.Contains(out, l) {
			t.Errorf("body line %q missing from failed panel", l)
		}
	}
	if foot := ansi.Strip(footerLine(a, 200, st)); !strings.Contains(foot, "cpu: parse") {
		t.Errorf("footer = %q, want the cpu failure", foot)
	}
}

func TestDisabledPanelSaysUnavailable(t *testing.T) {
	a, _ := hostApp(t)
	st := newStyles(MonitoringTheme)

	for _, p := range []app.Panel{app.PanelSensors, app.PanelNetwork, app.PanelConnections} {
		out := stripped(renderPanel(a, cell{Panel: p, W: 40, H: 6}, st))
		if !strings.Contains(out, unavailableText) {
			t.Errorf("%s panel = %q, want %q", p, out, unavailableText)
		}
		if strings.Contains(out, "!") {
			t.Errorf("%s panel shows a failure diagnostic: %q", p, out)
		}
	}
	if out := stripped(renderPanel(a, cell{Panel: app.PanelMemory, W: 40, H: 6}, st)); strings.Contains(out, unavailableText) {
		t.Errorf("memory panel = %q, want data", out)
	}

	foot := ansi.Strip(footerLine(a, 200, st))
	if !strings.Contains(foot, "quit") {
		t.Errorf("footer = %q, want key hints", foot)
	}
	for _, id := range []string{"battery", "sensors", "connections", "disk"} {
		if strings.Contains(foot, id) {
			t.Errorf("footer lists disabled %s: %q", id, foot)
		}
	}
}

func TestGreyedDropsColors(t *testing.T) {
	prev := lipgloss.ColorProfile()
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
	lipgloss.SetColorProfile(termenv.TrueColor)

	st := newStyles(MonitoringTheme)
	hot := st.danger.Render("hot")
	got := greyed([]string{hot, "plain"}, st)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if want := st.muted.Render("hot"); got[0] != want {
		t.Errorf("greyed = %q, want %q", got[0], want)
	}
	if ansi.Strip(got[1]) != "plain" {
		t.Errorf("greyed plain = %q", got[1])
	}
}

func TestDiagnosticFitsOneLine(t *testing.T) {
	st := newStyles(MonitoringTheme)
	err := os.ErrDeadlineExceeded
	for _, w := range []int{5, 20, 80} {
		d := diagnostic(err, w, st)
		if strings.Contains(d, "\n") {
			t.Errorf("w=%d: diagnostic spans lines: %q", w, d)
		}
		if got := ansi.StringWidth(d); got > w {
			t.Errorf("w=%d: width = %d", w, got)
		}
		if !strings.HasPrefix(ansi.Strip(d), "!") {
			t.Errorf("w=%d: diagnostic = %q", w, d)
		}
	}
}
