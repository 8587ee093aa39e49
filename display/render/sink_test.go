package render

import (
	"bytes"
	"errors"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

type failSink struct{ n int }

func (f *failSink) Present(Frame) error {
	f.n++
	return errors.New("boom")
}

func TestRecorderLimitAndReplay(t *testing.T) {
	rec := &Recorder{Limit: 2}
	for i := range 5 {
		if err := rec.Present(Frame{Seq: uint64(i), Text: strings.Repeat("x", i)}); err != nil {
			t.Fatal(err)
		}
	}
	frames := rec.Frames()
	if len(frames) != 2 || frames[0].Seq != 3 || frames[1].Seq != 4 {
		t.Fatalf("frames = %+v", frames)
	}
	last, ok := rec.Last()
	if !ok || last.Seq != 4 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}

	var term Terminal
	if err := rec.Replay(&term); err != nil {
		t.Fatal(err)
	}
	if term.View() != "xxxx" || term.Presented() != 2 {
		t.Errorf("terminal view = %q after %d frames", term.View(), term.Presented())
	}
	if _, ok := (&Recorder{}).Last(); ok {
		t.Error("empty recorder has a last frame")
	}
}

func TestMultiPresentsToAll(t *testing.T) {
	var term Terminal
	fail := &failSink{}
	var buf bytes.Buffer
	err := Multi{fail, &term, Writer{W: &buf}}.Present(Frame{Text: "hello"})
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if fail.n != 1 || term.View() != "hello" || buf.String() != "hello\n" {
		t.Errorf("fan-out incomplete: fail=%d view=%q buf=%q", fail.n, term.View(), buf.String())
	}
}

func TestRasterize(t *testing.T) {
	series := []Series{
		{Name: "cpu", Values: []float64{0, 1}, Max: 1},
		{Name: "mem", Values: []float64{0.5}, Max: 1},
	}
	img := Rasterize(series, 4, 10)
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 10 {
		t.Fatalf("bounds = %v", b)
	}
	// cpu band is rows 0..4; its last column is full, the one before empty.
	if got := img.NRGBAAt(3, 0); got != palette[0] {
		t.Errorf("full column top = %v", got)
	}
	if got := img.NRGBAAt(2, 4); got != background {
		t.Errorf("zero column = %v", got)
	}
	if got := img.NRGBAAt(0, 4); got != background {
		t.Errorf("missing sample column = %v", got)
	}
	// mem band starts with a grid line at row 5, then rows 6..9 half filled.
	if got := img.NRGBAAt(0, 5); got != gridLine {
		t.Errorf("grid line = %v", got)
	}
	if got := img.NRGBAAt(3, 9); got != palette[1] {
		t.Errorf("mem bottom = %v", got)
	}
	if got := img.NRGBAAt(3, 6); got != background {
		t.Errorf("mem top = %v", got)
	}

	again := Rasterize(series, 4, 10)
	if !bytes.Equal(img.Pix, again.Pix) {
		t.Error("rasterize is not deterministic")
	}
}

func TestRasterizeEmpty(t *testing.T) {
	img := Rasterize(nil, 0, 0)
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("bounds = %v", b)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA(background)) {
		t.Errorf("pixel = %v", got)
	}
}

func TestPNGSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	sink := PNG{Path: path, Scale: 2}
	f := Frame{Width: 8, Height: 3, Series: []Series{{Name: "cpu", Values: []float64{1, 2, 3}}}}
	if err := sink.Present(f); err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 12 {
		t.Errorf("bounds = %v, want 16x12", b)
	}

	bad := PNG{Path: filepath.Join(t.TempDir(), "missing", "frame.png")}
	if err := bad.Present(f); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestHalfBlocks(t *testing.T) {
	img := Rasterize([]Series{{Values: []float64{1, 1, 1, 1}, Max: 1}}, 4, 4)
	out := HalfBlocks(img, 4, 2)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if n := strings.Count(lines[0], "▀"); n != 4 {
		t.Errorf("cells in first line = %d", n)
	}
	if HalfBlocks(img, 0, 2) != "" {
		t.Error("zero cols should render nothing")
	}
}
