package analyzers

import (
	"math"
	"slices"
)

// Rect is an axis-aligned rectangle in layout units.
type Rect struct {
	X, Y, W, H float64
}

// Area returns W·H.
func (r Rect) Area() float64 { return r.W * r.H }

// Aspect returns the ratio of the longer side to the shorter, or +Inf for a
// degenerate rectangle.
func (r Rect) Aspect() float64 {
	if r.W <= 0 || r.H <= 0 {
		return math.Inf(1)
	}
	return max(r.W/r.H, r.H/r.W)
}

// TreeItem is one input to the treemap.
type TreeItem struct {
	Path     string
	Size     float64
	Category FileCategory
}

// TreeRect is one laid-out item.
type TreeRect struct {
	Path     string
	Size     float64
	Rect     Rect
	Category FileCategory
}

// Squarify lays out items in bounds using the squarified treemap algorithm
// of Bruls, Huizing and van Wijk. Items are placed largest first (ties keep
// input order). Items with non-positive size are dropped. The union of the
// returned rectangles is bounds: the last item of each row ends exactly on
// the row's edge and the last row fills what remains.
func Squarify(items []TreeItem, bounds Rect) []TreeRect {
	sorted := make([]TreeItem, 0, len(items))
	var total float64
	for _, it := range items {
		if it.Size > 0 {
			sorted = append(sorted, it)
			total += it.Size
		}
	}
	if len(sorted) == 0 || bounds.W <= 0 || bounds.H <= 0 {
		return nil
	}
	slices.SortStableFunc(sorted, func(a, b TreeItem) int { return cmpFloat(b.Size, a.Size) })

	scale := bounds.Area() / total
	areas := make([]float64, len(sorted))
	for i, it := range sorted {
		areas[i] = it.Size * scale
	}

	out := make([]TreeRect, 0, len(sorted))
	remaining := bounds
	for i := 0; i < len(sorted); {
		short := min(remaining.W, remaining.H)
		j := i + 1
		for j < len(sorted) && worstAspect(areas[i:j+1], short) <= worstAspect(areas[i:j], short) {
			j++
		}
		last := j == len(sorted)
		var rects []Rect
		rects, remaining = layoutRow(areas[i:j], remaining, last)
		for k, r := range rects {
			it := sorted[i+k]
			out = append(out, TreeRect{Path: it.Path, Size: it.Size, Rect: r, Category: it.Category})
		}
		i = j
	}
	return out
}

// worstAspect is the largest aspect ratio in a row of areas laid along a
// side of length short.
func worstAspect(row []float64, short float64) float64 {
	var sum float64
	rmin, rmax := math.Inf(1), 0.0
	for _, a := range row {
		sum += a
		rmin = min(rmin, a)
		rmax = max(rmax, a)
	}
	if sum == 0 || short == 0 {
		return math.Inf(1)
	}
	s2 := sum * sum
	w2 := short * short
	return max(w2*rmax/s2, s2/(w2*rmin))
}

// layoutRow places a row along the shorter side of r and returns the row's
// rectangles and the space left over. When fill is set the row takes all of
// r.
func layoutRow(row []float64, r Rect, fill bool) ([]Rect, Rect) {
	var sum float64
	for _, a := range row {
		sum += a
	}
	rects := make([]Rect, len(row))
	if r.W >= r.H {
		// Vertical strip on the left.
		w := sum / r.H
		if fill {
			w = r.W
		}
		y := r.Y
		for i, a := range row {
			h := a / w
			if i == len(row)-1 {
				h = r.Y + r.H - y
			}
			rects[i] = Rect{X: r.X, Y: y, W: w, H: h}
			y += h
		}
		return rects, Rect{X: r.X + w, Y: r.Y, W: r.W - w, H: r.H}
	}
	// Horizontal strip on top.
	h := sum / r.W
	if fill {
		h = r.H
	}
	x := r.X
	for i, a := range row {
		w := a / h
		if i == len(row)-1 {
			w = r.X + r.W - x
		}
		rects[i] = Rect{X: x, Y: r.Y, W: w, H: h}
		x += w
	}
	return rects, Rect{X: r.X, Y: r.Y + h, W: r.W, H: r.H - h}
}

// TreemapFiles lays out the largest limit files in bounds, folding the rest
// into one "(other)" item. limit ≤ 0 keeps every file.
func TreemapFiles(files []FileSize, bounds Rect, limit int) []TreeRect {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b FileSize) int { return cmpFloat(float64(b.Size), float64(a.Size)) })
	items := make([]TreeItem, 0, len(sorted))
	var rest float64
	for i, f := range sorted {
		if limit > 0 && i >= limit {
			rest += float64(f.Size)
			continue
		}
		items = append(items, TreeItem{Path: f.Path, Size: float64(f.Size), Category: Classify(f.Path)})
	}
	if rest > 0 {
		items = append(items, TreeItem{Path: "(other)", Size: rest, Category: CategoryOther})
	}
	return Squarify(items, bounds)
}
