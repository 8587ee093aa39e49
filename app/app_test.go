package app

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/ttop/collectors/cpu"
	"gitlab.com/tinyland/lab/ttop/collectors/process"
)

func newDeterministic(t *testing.T) *App {
	t.Helper()
	a := New(Options{Deterministic: true})
	t.Cleanup(a.Close)
	return a
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDeterministicFirstCollectZeroPercents(t *testing.T) {
	a := newDeterministic(t)
	m := a.CollectMetrics(context.Background())
	if m == nil || m.Len() == 0 {
		t.Fatal("expected metrics from the first collect")
	}
	for _, k := range []string{"cpu.usage.percent", "memory.used.percent", "memory.available.percent"} {
		v, ok := m.Gauge(k)
		if !ok {
			t.Errorf("%s missing; keys = %v", k, m.Keys())
			continue
		}
		if v != 0 {
			t.Errorf("%s = %v, want 0", k, v)
		}
	}
	for _, k := range m.Keys() {
		if !strings.HasSuffix(k, ".percent") {
			continue
		}
		if v, _ := m.Gauge(k); v != 0 {
			t.Errorf("%s = %v, want 0", k, v)
		}
	}
	if got := a.Failing(); len(got) != 0 {
		t.Errorf("Failing() = %v, want none", got)
	}
}

func TestDeterministicSnapshotIsStable(t *testing.T) {
	a, b := newDeterministic(t), newDeterministic(t)
	for range 3 {
		ma := a.CollectMetrics(context.Background())
		mb := b.CollectMetrics(context.Background())
		ja, err := ma.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		jb, err := mb.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		if string(ja) != string(jb) {
			t.Fatalf("snapshots differ:\n%s\n%s", ja, jb)
		}
	}
}

func TestCPUUsageFromFedSamples(t *testing.T) {
	a := newDeterministic(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.CPU().Feed(cpu.Sample{Aggregate: cpu.Times{User: 50, Idle: 50}, Time: t0})
	a.CPU().Feed(cpu.Sample{Aggregate: cpu.Times{User: 200, Idle: 100}, Time: t0.Add(time.Second)})

	a.CollectMetrics(context.Background())
	if n := a.CPUHistory().Len(); n != 0 {
		t.Fatalf("history after first collect = %d, want 0", n)
	}
	m := a.CollectMetrics(context.Background())
	got, _ := m.Gauge("cpu.usage.percent")
	if got != 0.75 {
		t.Errorf("cpu.usage.percent = %v, want 0.75", got)
	}
	if n := a.CPUHistory().Len(); n != 1 {
		t.Errorf("history len = %d, want 1", n)
	}
	if v, _ := a.CPUHistory().Latest(); v != 0.75 {
		t.Errorf("latest history = %v, want 0.75", v)
	}
	if !m.Timestamp.Equal(t0.Add(time.Second)) {
		t.Errorf("timestamp = %v, want %v", m.Timestamp, t0.Add(time.Second))
	}
}

func TestHistoryCapacity(t *testing.T) {
	a := New(Options{Deterministic: true, HistoryLen: 3})
	for range 10 {
		a.CollectMetrics(context.Background())
	}
	if got := a.MemoryHistory().Len(); got != 3 {
		t.Errorf("memory history len = %d, want 3", got)
	}
	if got := a.MemoryHistory().Cap(); got != 3 {
		t.Errorf("memory history cap = %d, want 3", got)
	}
	if got := a.Series("memory"); len(got) != 3 {
		t.Errorf("Series(memory) = %v", got)
	}
	if got := a.Series("net.nope.rx"); got != nil {
		t.Errorf("Series of unknown key = %v, want nil", got)
	}
}

func TestHandleKeyScenarios(t *testing.T) {
	tests := []struct {
		name  string
		keys  []tea.KeyMsg
		quit  bool
		check func(t *testing.T, a *App)
	}{
		{
			name: "question mark toggles help",
			keys: []tea.KeyMsg{runes("?")},
			check: func(t *testing.T, a *App) {
				if !a.ShowHelp() {
					t.Error("help not shown")
				}
			},
		},
		{
			name: "h toggles help twice",
			keys: []tea.KeyMsg{runes("h"), runes("H")},
			check: func(t *testing.T, a *App) {
				if a.ShowHelp() {
					t.Error("help still shown")
				}
			},
		},
		{
			name: "digit flips its panel",
			keys: []tea.KeyMsg{runes("1")},
			check: func(t *testing.T, a *App) {
				if a.Panels().Visible(PanelCPU) {
					t.Error("cpu panel still visible")
				}
				if a.Selected() != PanelMemory {
					t.Errorf("selected = %v, want memory", a.Selected())
				}
			},
		},
		{
			name: "q quits without touching panels",
			keys: []tea.KeyMsg{runes("q")},
			quit: true,
			check: func(t *testing.T, a *App) {
				if a.Panels() != DefaultPanels() {
					t.Error("panels changed")
				}
			},
		},
		{name: "upper Q quits", keys: []tea.KeyMsg{runes("Q")}, quit: true},
		{name: "esc quits", keys: []tea.KeyMsg{{Type: tea.KeyEscape}}, quit: true},
		{name: "ctrl+c quits", keys: []tea.KeyMsg{{Type: tea.KeyCtrlC}}, quit: true},
		{
			name: "t toggles tree",
			keys: []tea.KeyMsg{runes("T")},
			check: func(t *testing.T, a *App) {
				if !a.ShowTree() {
					t.Error("tree not shown")
				}
			},
		},
		{
			name: "s cycles sort and r reverses",
			keys: []tea.KeyMsg{runes("s"), runes("r")},
			check: func(t *testing.T, a *App) {
				if a.SortColumn() != process.SortPID.Next() {
					t.Errorf("sort = %v", a.SortColumn())
				}
				if !a.Reverse() {
					t.Error("not reversed")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newDeterministic(t)
			var quit bool
			for _, k := range tt.keys {
				quit = a.HandleKey(k)
			}
			if quit != tt.quit {
				t.Fatalf("quit = %v, want %v", quit, tt.quit)
			}
			if tt.check != nil {
				tt.check(t, a)
			}
		})
	}
}

func TestHandleKeyIsTotal(t *testing.T) {
	a := newDeterministic(t)
	a.CollectMetrics(context.Background())
	quitters := map[string]bool{"q": true, "esc": true, "ctrl+c": true}
	for kt := tea.KeyType(-128); kt < 128; kt++ {
		for _, alt := range []bool{false, true} {
			msg := tea.KeyMsg{Type: kt, Alt: alt}
			if kt == tea.KeyRunes {
				msg.Runes = []rune{'x'}
			}
			want := !alt && quitters[msg.String()]
			if got := a.HandleKey(msg); got != want {
				t.Errorf("HandleKey(%q) = %v, want %v", msg.String(), got, want)
			}
		}
	}
	for r := rune(0); r < 0x250; r++ {
		msg := runes(string(r))
		want := r == 'q' || r == 'Q'
		if got := a.HandleKey(msg); got != want {
			t.Errorf("HandleKey(%q) = %v, want %v", r, got, want)
		}
		msg.Alt = true
		if a.HandleKey(msg) {
			t.Errorf("HandleKey(alt+%q) quit", r)
		}
	}
	if s := a.Selected(); s < 0 || s >= panelCount {
		t.Errorf("selected out of range: %d", s)
	}
	for _, p := range AllPanels() {
		if off := a.Scroll(p); off < 0 {
			t.Errorf("scroll(%v) = %d", p, off)
		}
	}
}

func TestTabSkipsHiddenPanels(t *testing.T) {
	a := newDeterministic(t)
	a.HandleKey(runes("2"))
	a.HandleKey(runes("3"))
	if a.Selected() != PanelCPU {
		t.Fatalf("selected = %v", a.Selected())
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyTab})
	if a.Selected() != PanelNetwork {
		t.Errorf("tab selected %v, want network", a.Selected())
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyShiftTab})
	a.HandleKey(tea.KeyMsg{Type: tea.KeyShiftTab})
	if a.Selected() != PanelContainers {
		t.Errorf("shift+tab wrapped to %v, want containers", a.Selected())
	}
}

func TestTabWithSinglePanelStays(t *testing.T) {
	var ps Panels
	ps.Set(PanelSensors, true)
	a := New(Options{Deterministic: true, Panels: &ps})
	if a.Selected() != PanelSensors {
		t.Fatalf("selected = %v", a.Selected())
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyTab})
	if a.Selected() != PanelSensors {
		t.Errorf("selected = %v, want sensors", a.Selected())
	}
}

func TestScrollClamps(t *testing.T) {
	a := newDeterministic(t)
	a.SetPageSize(2)
	procs := make([]process.RawProcess, 5)
	for i := range procs {
		procs[i] = process.RawProcess{PID: i + 1, PPID: 0, Name: "p", Ticks: 1}
	}
	t0 := time.Unix(100, 0)
	a.Process().Feed(process.Sample{Procs: procs, TotalTicks: 100, MemTotal: 1 << 20, Cores: 1, Time: t0})
	a.CollectMetrics(context.Background())

	for a.Selected() != PanelProcess {
		a.HandleKey(tea.KeyMsg{Type: tea.KeyTab})
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyUp})
	if got := a.Scroll(PanelProcess); got != 0 {
		t.Errorf("scroll after up = %d, want 0", got)
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyEnd})
	if got := a.Scroll(PanelProcess); got != 3 {
		t.Errorf("scroll after end = %d, want 3", got)
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyPgDown})
	if got := a.Scroll(PanelProcess); got != 3 {
		t.Errorf("scroll after pgdown = %d, want 3", got)
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyPgUp})
	if got := a.Scroll(PanelProcess); got != 1 {
		t.Errorf("scroll after pgup = %d, want 1", got)
	}
	a.HandleKey(tea.KeyMsg{Type: tea.KeyHome})
	if got := a.Scroll(PanelProcess); got != 0 {
		t.Errorf("scroll after home = %d, want 0", got)
	}
	if got := len(a.ProcessRows()); got != 5 {
		t.Errorf("process rows = %d, want 5", got)
	}
}

func TestFrameStats(t *testing.T) {
	a := newDeterministic(t)
	if st := a.FrameStats(); st.Count != 0 || st.FPS != 0 {
		t.Fatalf("empty stats = %+v", st)
	}
	for i := 1; i <= 200; i++ {
		a.RecordFrame(time.Duration(i) * time.Millisecond)
	}
	st := a.FrameStats()
	if st.Count != 200 {
		t.Errorf("count = %d", st.Count)
	}
	// Only the last 120 frames (81..200 ms) are kept.
	if st.Min != 81*time.Millisecond || st.Max != 200*time.Millisecond {
		t.Errorf("min/max = %v/%v", st.Min, st.Max)
	}
	if st.Last != 200*time.Millisecond {
		t.Errorf("last = %v", st.Last)
	}
	if st.P95 != 194*time.Millisecond {
		t.Errorf("p95 = %v, want 194ms", st.P95)
	}
	if st.FPS <= 0 {
		t.Errorf("fps = %v", st.FPS)
	}
}
