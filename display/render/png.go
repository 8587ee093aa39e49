package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	background = color.NRGBA{R: 0x1A, G: 0x1A, B: 0x2E, A: 0xFF}
	gridLine   = color.NRGBA{R: 0x33, G: 0x33, B: 0x4D, A: 0xFF}
	palette    = []color.NRGBA{
		{R: 0x22, G: 0xC5, B: 0x5E, A: 0xFF},
		{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
		{R: 0xEA, G: 0xB3, B: 0x08, A: 0xFF},
		{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF},
		{R: 0xA8, G: 0x55, B: 0xF7, A: 0xFF},
		{R: 0x06, G: 0xB6, B: 0xD4, A: 0xFF},
	}
)

// PNG rasterizes each frame's series and writes the image to Path,
// replacing the previous one.
type PNG struct {
	Path string
	// Width and Height of the raster before scaling. Zero uses the frame's
	// cell size.
	Width, Height int
	// Scale enlarges the raster with nearest-neighbour sampling.
	Scale int
}

func (p PNG) Present(f Frame) error {
	w, h := p.Width, p.Height
	if w <= 0 {
		w = f.Width
	}
	if h <= 0 {
		h = f.Height * 2
	}
	img := Rasterize(f.Series, w, h)
	if p.Scale > 1 {
		img = imaging.Resize(img, w*p.Scale, h*p.Scale, imaging.NearestNeighbor)
	}
	if err := imaging.Save(img, p.Path); err != nil {
		return fmt.Errorf("render: save %s: %w", p.Path, err)
	}
	return nil
}

// Rasterize draws each series as a filled area chart in its own
// horizontal band, newest sample at the right edge, one pixel column per
// sample. The output depends only on its inputs.
func Rasterize(series []Series, width, height int) *image.NRGBA {
	width, height = max(width, 1), max(height, 1)
	img := imaging.New(width, height, background)
	if len(series) == 0 {
		return img
	}
	band := height / len(series)
	if band < 2 {
		band = 2
	}
	for i, s := range series {
		top := i * band
		if top >= height {
			break
		}
		bottom := min(top+band, height)
		if i > 0 {
			for x := 0; x < width; x++ {
				img.SetNRGBA(x, top, gridLine)
			}
			top++
		}
		drawArea(img, s, top, bottom, palette[i%len(palette)])
	}
	return img
}

func drawArea(img *image.NRGBA, s Series, top, bottom int, c color.NRGBA) {
	width := img.Bounds().Dx()
	vals := s.Values
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}
	ceiling := s.Max
	if ceiling <= 0 {
		for _, v := range vals {
			if v > ceiling {
				ceiling = v
			}
		}
	}
	if ceiling <= 0 {
		return
	}
	span := bottom - top
	x0 := width - len(vals)
	for i, v := range vals {
		if !(v > 0) {
			continue
		}
		n := int(math.Round(math.Min(v/ceiling, 1) * float64(span)))
		for y := bottom - n; y < bottom; y++ {
			img.SetNRGBA(x0+i, y, c)
		}
	}
}

// HalfBlocks renders img as cols×rows terminal cells, two pixels per cell
// using the upper half block with 24-bit foreground and background.
func HalfBlocks(img image.Image, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	resized := imaging.Fit(img, cols, rows*2, imaging.Lanczos)
	b := resized.Bounds()
	var sb strings.Builder
	for y := 0; y < b.Dy(); y += 2 {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < b.Dx(); x++ {
			tr, tg, tb := rgb(resized.At(b.Min.X+x, b.Min.Y+y))
			var br, bg, bb uint8
			if y+1 < b.Dy() {
				br, bg, bb = rgb(resized.At(b.Min.X+x, b.Min.Y+y+1))
			}
			fmt.Fprintf(&sb, "\033[38;2;%d;%d;%dm\033[48;2;%d;%d;%dm▀\033[0m", tr, tg, tb, br, bg, bb)
		}
	}
	return sb.String()
}

func rgb(c color.Color) (r, g, b uint8) {
	r32, g32, b32, _ := c.RGBA()
	return uint8(r32 >> 8), uint8(g32 >> 8), uint8(b32 >> 8)
}
