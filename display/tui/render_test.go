package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"gitlab.com/tinyland/lab/ttop/app"
	"gitlab.com/tinyland/lab/ttop/collectors/cpu"
	"gitlab.com/tinyland/lab/ttop/collectors/memory"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fedApp returns a deterministic App with one collect of fixed samples.
func fedApp(t *testing.T) *app.App {
	t.Helper()
	a := app.New(app.Options{Deterministic: true})
	t.Cleanup(a.Close)

	a.CPU().Feed(cpu.Sample{
		Aggregate: cpu.Times{User: 50, Idle: 50},
		Cores:     []cpu.Times{{User: 25, Idle: 25}, {User: 25, Idle: 25}},
		Load1:     0.5,
		Time:      t0,
	})
	a.CPU().Feed(cpu.Sample{
		Aggregate: cpu.Times{User: 200, Idle: 100},
		Cores:     []cpu.Times{{User: 100, Idle: 50}, {User: 100, Idle: 50}},
		Load1:     0.5,
		Time:      t0.Add(time.Second),
	})
	a.Memory().Feed(memory.Sample{
		Total:     8 << 30,
		Free:      2 << 30,
		Available: 4 << 30,
		Buffers:   1 << 30,
		Cached:    1 << 30,
		Time:      t0.Add(time.Second),
	})
	a.Process().Feed(process.Sample{
		Procs: []process.RawProcess{
			{PID: 1, Name: "init", User: "root", State: "S", Threads: 1, RSS: 4 << 20},
			{PID: 42, PPID: 1, Name: "shell", User: "dev", State: "R", Threads: 2, RSS: 8 << 20},
		},
		TotalTicks: 1000,
		MemTotal:   8 << 30,
		Cores:      2,
		Time:       t0.Add(time.Second),
	})
	a.CollectMetrics(context.Background())
	return a
}

func checkShape(t *testing.T, out string, width, height int) {
	t.Helper()
	lines := strings.Split(out, "\n")
	if len(lines) != height {
		t.Fatalf("lines = %d, want %d", len(lines), height)
	}
	for i, l := range lines {
		if w := ansi.StringWidth(l); w != width {
			t.Errorf("line %d width = %d, want %d: %q", i, w, width, l)
		}
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	a, b := fedApp(t), fedApp(t)
	first := Render(a, 100, 30, RenderOptions{})
	if again := Render(a, 100, 30, RenderOptions{}); again != first {
		t.Fatal("two renders of the same state differ")
	}
	if other := Render(b, 100, 30, RenderOptions{}); other != first {
		t.Fatalf("equal states rendered differently:\n%s\n---\n%s", first, other)
	}
}

func TestRenderShape(t *testing.T) {
	a := fedApp(t)
	tests := []struct{ width, height int }{
		{1, 1},
		{20, 2},
		{40, 10},
		{80, 24},
		{120, 40},
		{200, 60},
	}
	for _, tt := range tests {
		checkShape(t, Render(a, tt.width, tt.height, RenderOptions{}), tt.width, tt.height)
	}
	if out := Render(a, 0, 10, RenderOptions{}); out != "" {
		t.Errorf("zero width render = %q", out)
	}
}

func TestRenderPanels(t *testing.T) {
	a := fedApp(t)
	out := Render(a, 160, 50, RenderOptions{})
	for _, want := range []string{"1 cpu", "2 memory", "5 process sort pid▼", "9 containers", "deterministic", "12:00:01", "shell"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
	if strings.Contains(out, "\x1b") {
		t.Error("ascii profile render contains escape sequences")
	}
}

func TestRenderHelpOverlay(t *testing.T) {
	a := fedApp(t)
	a.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	out := Render(a, 100, 40, RenderOptions{})
	checkShape(t, out, 100, 40)
	for _, want := range []string{"help", "Navigation", "toggle process tree", "quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("help overlay missing %q", want)
		}
	}
	if strings.Contains(out, "1 cpu") {
		t.Error("help overlay should replace the panels")
	}
}

func TestRenderAllPanelsHidden(t *testing.T) {
	a := fedApp(t)
	for i := range app.PanelCount {
		a.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{rune('1' + i)}})
	}
	out := Render(a, 80, 24, RenderOptions{})
	checkShape(t, out, 80, 24)
	if !strings.Contains(out, "all panels hidden") {
		t.Errorf("missing hidden panels hint:\n%s", out)
	}
}

func TestRenderTreeTitle(t *testing.T) {
	a := fedApp(t)
	a.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	a.HandleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	out := Render(a, 160, 50, RenderOptions{})
	if !strings.Contains(out, "sort pid▲ tree") {
		t.Error("process title should show reverse sort and tree mode")
	}
	if !strings.Contains(out, "└─shell") {
		t.Error("tree view should draw a branch for the child process")
	}
}

func TestRenderMark(t *testing.T) {
	a := fedApp(t)
	var ids []string
	mark := func(id, s string) string {
		ids = append(ids, id)
		return s
	}
	plain := Render(a, 80, 24, RenderOptions{})
	marked := Render(a, 80, 24, RenderOptions{Mark: mark})
	if plain != marked {
		t.Error("an identity mark changed the output")
	}
	if len(ids) != app.PanelCount || ids[0] != "panel-cpu" {
		t.Errorf("marked zones = %v", ids)
	}
}

func TestFrameSeries(t *testing.T) {
	a := fedApp(t)
	series := FrameSeries(a)
	byName := make(map[string]float64)
	for _, s := range series {
		byName[s.Name] = s.Max
	}
	if m, ok := byName["cpu"]; !ok || m != 1 {
		t.Errorf("cpu series max = %v, %v", m, ok)
	}
	if m, ok := byName["memory"]; !ok || m != 100 {
		t.Errorf("memory series max = %v, %v", m, ok)
	}
}
