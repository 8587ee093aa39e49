// Package render is the framebuffer boundary of ttop: a rendered frame is
// handed to a Sink, which may draw it on the terminal, keep it for replay
// or rasterize its series to an image.
package render

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Series is one history drawn by graph sinks.
type Series struct {
	Name   string
	Values []float64
	// Max is the value drawn at full height. Zero scales to the data.
	Max float64
}

// Frame is one fully rendered screen.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	// Text is the screen content, lines separated by '\n'.
	Text   string
	Series []Series
}

// Sink consumes frames.
type Sink interface {
	Present(Frame) error
}

// Terminal holds the latest frame for the bubbletea view to print. It is
// safe for concurrent use.
type Terminal struct {
	mu        sync.Mutex
	last      Frame
	presented uint64
}

// Present stores f as the frame to draw next.
func (t *Terminal) Present(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = f
	t.presented++
	return nil
}

// View returns the text of the latest frame.
func (t *Terminal) View() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last.Text
}

// Presented is the number of frames presented so far.
func (t *Terminal) Presented() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.presented
}

// Recorder keeps presented frames for replay and byte comparison.
type Recorder struct {
	// Limit bounds how many frames are kept, oldest dropped first. Zero
	// keeps every frame.
	Limit  int
	frames []Frame
}

// Present records f.
func (r *Recorder) Present(f Frame) error {
	r.frames = append(r.frames, f)
	if r.Limit > 0 && len(r.frames) > r.Limit {
		r.frames = append(r.frames[:0], r.frames[len(r.frames)-r.Limit:]...)
	}
	return nil
}

// Frames returns the recorded frames, oldest first.
func (r *Recorder) Frames() []Frame { return append([]Frame(nil), r.frames...) }

// Last returns the most recent frame.
func (r *Recorder) Last() (Frame, bool) {
	if len(r.frames) == 0 {
		return Frame{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Replay presents every recorded frame to dst in order.
func (r *Recorder) Replay(dst Sink) error {
	for _, f := range r.frames {
		if err := dst.Present(f); err != nil {
			return fmt.Errorf("render: replay frame %d: %w", f.Seq, err)
		}
	}
	return nil
}

// Writer prints each frame's text followed by a newline.
type Writer struct {
	W io.Writer
}

func (w Writer) Present(f Frame) error {
	if _, err := io.WriteString(w.W, f.Text+"\n"); err != nil {
		return fmt.Errorf("render: write frame: %w", err)
	}
	return nil
}

// Multi fans a frame out to several sinks. Every sink sees the frame even
// if an earlier one fails.
type Multi []Sink

func (m Multi) Present(f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.Present(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
