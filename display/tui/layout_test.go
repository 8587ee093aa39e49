package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/ttop/app"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutSize
	}{
		{10, LayoutCompact},
		{79, LayoutCompact},
		{80, LayoutNormal},
		{159, LayoutNormal},
		{160, LayoutWide},
		{300, LayoutWide},
	}
	for _, tt := range tests {
		if got := DetectLayout(tt.width); got != tt.want {
			t.Errorf("DetectLayout(%d) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestComputeGridTiles(t *testing.T) {
	all := app.AllPanels()
	tests := []struct {
		name          string
		panels        int
		width, height int
		cols          int
	}{
		{"single", 1, 100, 30, 1},
		{"compact", 5, 60, 40, 1},
		{"normal", 5, 120, 40, 2},
		{"wide", 9, 200, 50, 3},
		{"wide few", 3, 200, 50, 2},
		{"odd sizes", 7, 101, 37, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cells := computeGrid(all[:tt.panels], tt.width, tt.height, all[0])
			if len(cells) != tt.panels {
				t.Fatalf("cells = %d, want %d", len(cells), tt.panels)
			}
			covered := make([][]int, tt.height)
			for y := range covered {
				covered[y] = make([]int, tt.width)
			}
			for _, c := range cells {
				for y := c.Y; y < c.Y+c.H; y++ {
					for x := c.X; x < c.X+c.W; x++ {
						covered[y][x]++
					}
				}
			}
			for y := range covered {
				for x, n := range covered[y] {
					if n != 1 {
						t.Fatalf("cell (%d,%d) covered %d times", x, y, n)
					}
				}
			}
			if !cells[0].Focused {
				t.Error("first panel should be focused")
			}
			if len(cells) > 1 && tt.cols == 1 && cells[1].Y == 0 {
				t.Error("single column layout placed two panels on one row")
			}
		})
	}
}

func TestComputeGridEmpty(t *testing.T) {
	if cells := computeGrid(nil, 80, 24, app.PanelCPU); cells != nil {
		t.Errorf("computeGrid(nil) = %v", cells)
	}
	if cells := computeGrid(app.AllPanels(), 0, 24, app.PanelCPU); cells != nil {
		t.Errorf("computeGrid(width 0) = %v", cells)
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 3, "abc"},
		{"", 2, "  "},
		{"abc", 0, ""},
		{"█▄", 3, "█▄ "},
	}
	for _, tt := range tests {
		if got := fit(tt.in, tt.width); got != tt.want {
			t.Errorf("fit(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestBox(t *testing.T) {
	st := newStyles(MonitoringTheme)
	got := strings.Join(box("1 cpu", []string{"hello", "world wide web"}, 12, 4, false, st), "\n")
	want := "" +
		"╭─ 1 cpu ──╮\n" +
		"│hello     │\n" +
		"│world wide│\n" +
		"╰──────────╯"
	if got != want {
		t.Errorf("box =\n%s\nwant\n%s", got, want)
	}
}

func TestBoxWithoutBorders(t *testing.T) {
	st := newStyles(MinimalTheme)
	got := box("2 memory", []string{"used"}, 10, 3, true, st)
	want := []string{"▸ 2 memory", "used      ", "          "}
	if len(got) != len(want) {
		t.Fatalf("lines = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestComposeGrid(t *testing.T) {
	cells := []cell{
		{X: 0, Y: 0, W: 3, H: 2},
		{X: 3, Y: 0, W: 2, H: 2},
		{X: 0, Y: 2, W: 5, H: 1},
	}
	rendered := [][]string{
		{"aaa", "aaa"},
		{"bb", "bb"},
		{"ccccc"},
	}
	got := strings.Join(composeGrid(cells, rendered, 5, 3), "\n")
	if want := "aaabb\naaabb\nccccc"; got != want {
		t.Errorf("composeGrid = %q, want %q", got, want)
	}
}
