package analyzers

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// PressureLevel grades some.avg10.
type PressureLevel int

const (
	PressureLow PressureLevel = iota
	PressureElevated
	PressureHigh
	PressureCritical
)

func (l PressureLevel) String() string {
	switch l {
	case PressureElevated:
		return "elevated"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "low"
	}
}

// ClassifyPressure maps a some.avg10 percentage to a level.
func ClassifyPressure(avg10 float64) PressureLevel {
	switch {
	case avg10 < 10:
		return PressureLow
	case avg10 < 30:
		return PressureElevated
	case avg10 < 60:
		return PressureHigh
	default:
		return PressureCritical
	}
}

// PressureAverages are stall percentages over 10 s, 60 s and 300 s.
type PressureAverages struct {
	Avg10  float64
	Avg60  float64
	Avg300 float64
	// Total is cumulative stall time in microseconds.
	Total uint64
}

// ResourcePressure is the some/full pair for one resource. Full is absent
// for cpu on older kernels.
type ResourcePressure struct {
	Resource string
	Some     PressureAverages
	Full     PressureAverages
	HasFull  bool
	Level    PressureLevel
}

// PSI holds pressure for cpu, io and memory.
type PSI struct {
	CPU    ResourcePressure
	IO     ResourcePressure
	Memory ResourcePressure
}

// Resources returns the three resources in display order.
func (p PSI) Resources() []ResourcePressure {
	return []ResourcePressure{p.CPU, p.IO, p.Memory}
}

// ErrNoPSI is returned when the kernel does not expose /proc/pressure.
var ErrNoPSI = errors.New("analyzers: pressure stall information not available")

// PsiAnalyzer reads /proc/pressure.
type PsiAnalyzer struct {
	fs procfs.FS
}

// NewPsiAnalyzer reads pressure files below procRoot.
func NewPsiAnalyzer(procRoot string) *PsiAnalyzer {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &PsiAnalyzer{fs: procfs.FS{Root: procRoot}}
}

// Available reports whether /proc/pressure exists.
func (a *PsiAnalyzer) Available() bool { return a.fs.Exists("pressure", "cpu") }

// Read parses all three resources.
func (a *PsiAnalyzer) Read() (PSI, error) {
	var p PSI
	for _, r := range []struct {
		name string
		dst  *ResourcePressure
	}{
		{"cpu", &p.CPU},
		{"io", &p.IO},
		{"memory", &p.Memory},
	} {
		rp, err := a.readResource(r.name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return PSI{}, ErrNoPSI
			}
			return PSI{}, err
		}
		*r.dst = rp
	}
	return p, nil
}

func (a *PsiAnalyzer) readResource(name string) (ResourcePressure, error) {
	rp := ResourcePressure{Resource: name}
	err := a.fs.Lines(func(_ int, line string) error {
		kind, avgs, err := ParsePressureLine(line)
		if err != nil {
			return err
		}
		switch kind {
		case "some":
			rp.Some = avgs
		case "full":
			rp.Full = avgs
			rp.HasFull = true
		}
		return nil
	}, "pressure", name)
	rp.Level = ClassifyPressure(rp.Some.Avg10)
	return rp, err
}

// ParsePressureLine parses "some avg10=0.00 avg60=0.00 avg300=0.00 total=0".
func ParsePressureLine(line string) (kind string, avgs PressureAverages, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", avgs, procfs.ErrShortLine
	}
	kind = fields[0]
	for _, f := range fields[1:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return "", avgs, fmt.Errorf("malformed field %q", f)
		}
		switch k {
		case "avg10", "avg60", "avg300":
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return "", avgs, fmt.Errorf("%s: %w", k, err)
			}
			switch k {
			case "avg10":
				avgs.Avg10 = x
			case "avg60":
				avgs.Avg60 = x
			default:
				avgs.Avg300 = x
			}
		case "total":
			x, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return "", avgs, fmt.Errorf("total: %w", err)
			}
			avgs.Total = x
		}
	}
	return kind, avgs, nil
}
