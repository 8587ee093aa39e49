package analyzers

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"slices"
	"strings"
)

// AnomalyThreshold is the |z| above which a file is flagged.
const AnomalyThreshold = 3.5

// meanADScale converts mean absolute deviation to the MAD scale
// (sqrt(pi/2) for normal data).
const meanADScale = 1.253314

// FileSize is one file found by a walk.
type FileSize struct {
	Path string
	Size int64
}

// Anomaly is a file whose size is an outlier among its peers.
type Anomaly struct {
	Path     string
	Size     int64
	Z        float64
	Category FileCategory
}

// ModifiedZScores returns 0.6745·(x−M)/MAD for every value. When MAD is 0 it
// falls back to (x−M)/(1.253314·MeanAD); when both are 0 every score is 0.
func ModifiedZScores(values []float64) []float64 {
	scores := make([]float64, len(values))
	if len(values) == 0 {
		return scores
	}
	m := median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - m)
	}
	if mad := median(dev); mad > 0 {
		for i, v := range values {
			scores[i] = 0.6745 * (v - m) / mad
		}
		return scores
	}
	var sum float64
	for _, d := range dev {
		sum += d
	}
	meanAD := sum / float64(len(dev))
	if meanAD == 0 {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - m) / (meanADScale * meanAD)
	}
	return scores
}

func median(values []float64) float64 {
	s := slices.Clone(values)
	slices.Sort(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// LargeFileDetector flags files whose size has a modified z-score above
// AnomalyThreshold.
type LargeFileDetector struct {
	files []FileSize
}

// Push adds one file.
func (d *LargeFileDetector) Push(f FileSize) { d.files = append(d.files, f) }

// Reset drops every pushed file.
func (d *LargeFileDetector) Reset() { d.files = d.files[:0] }

// Len returns the number of pushed files.
func (d *LargeFileDetector) Len() int { return len(d.files) }

// Anomalies returns the outliers, largest |z| first.
func (d *LargeFileDetector) Anomalies() []Anomaly {
	return DetectAnomalies(d.files)
}

// DetectAnomalies scores files and returns those above AnomalyThreshold.
func DetectAnomalies(files []FileSize) []Anomaly {
	values := make([]float64, len(files))
	for i, f := range files {
		values[i] = float64(f.Size)
	}
	var out []Anomaly
	for i, z := range ModifiedZScores(values) {
		if math.Abs(z) > AnomalyThreshold {
			out = append(out, Anomaly{
				Path:     files[i].Path,
				Size:     files[i].Size,
				Z:        z,
				Category: Classify(files[i].Path),
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Anomaly) int {
		return cmpFloat(math.Abs(b.Z), math.Abs(a.Z))
	})
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// WalkOptions bounds a storage walk.
type WalkOptions struct {
	// Depth is the maximum directory depth below each root; 0 means only
	// the root's direct entries.
	Depth int
	// MaxFiles stops the walk early; 0 means unlimited.
	MaxFiles int
}

// ErrWalkLimit is returned when MaxFiles was reached.
var ErrWalkLimit = errors.New("analyzers: walk file limit reached")

// WalkSizes collects regular-file sizes under roots. Symlinks and unreadable
// directories are skipped.
func WalkSizes(ctx context.Context, roots []string, opts WalkOptions) ([]FileSize, error) {
	var out []FileSize
	for _, root := range roots {
		root = filepath.Clean(root)
		base := strings.Count(root, string(filepath.Separator))
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if d.IsDir() {
				if path != root && strings.Count(path, string(filepath.Separator))-base > opts.Depth {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			out = append(out, FileSize{Path: path, Size: info.Size()})
			if opts.MaxFiles > 0 && len(out) >= opts.MaxFiles {
				return ErrWalkLimit
			}
			return nil
		})
		if errors.Is(err, ErrWalkLimit) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}
