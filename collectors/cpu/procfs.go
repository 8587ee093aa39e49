package cpu

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// procSource reads /proc/stat, /proc/loadavg, /proc/cpuinfo and /proc/uptime.
type procSource struct {
	fs procfs.FS
}

func newProcSource(root string) *procSource {
	return &procSource{fs: procfs.FS{Root: root}}
}

func (p *procSource) available() bool {
	return p.fs.Exists("stat")
}

func (p *procSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}

	if err := p.fs.Lines(func(_ int, line string) error {
		if !strings.HasPrefix(line, "cpu") {
			return nil
		}
		fields := strings.Fields(line)
		t, err := parseTimes(fields[1:])
		if err != nil {
			return err
		}
		if fields[0] == "cpu" {
			s.Aggregate = t
		} else {
			s.Cores = append(s.Cores, t)
		}
		return nil
	}, "stat"); err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("stat"), err)
	}

	// Load, frequency and uptime are best effort; utilization does not
	// depend on them.
	if line, err := p.fs.String("loadavg"); err == nil {
		f := strings.Fields(line)
		if len(f) >= 3 {
			s.Load1, _ = strconv.ParseFloat(f[0], 64)
			s.Load5, _ = strconv.ParseFloat(f[1], 64)
			s.Load15, _ = strconv.ParseFloat(f[2], 64)
		}
	}
	s.FreqMHz = p.readFreq()
	if line, err := p.fs.String("uptime"); err == nil {
		if f := strings.Fields(line); len(f) > 0 {
			if secs, err := strconv.ParseFloat(f[0], 64); err == nil {
				s.Uptime = time.Duration(secs * float64(time.Second))
			}
		}
	}
	return s, nil
}

// readFreq averages the "cpu MHz" lines of /proc/cpuinfo.
func (p *procSource) readFreq() float64 {
	var sum float64
	var n int
	_ = p.fs.Lines(func(_ int, line string) error {
		k, v, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(k) != "cpu MHz" {
			return nil
		}
		if mhz, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			sum += mhz
			n++
		}
		return nil
	}, "cpuinfo")
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// parseTimes parses the counter columns of a /proc/stat cpu line. Kernels
// older than 2.6.11 omit steal; missing trailing columns read as zero.
func parseTimes(fields []string) (Times, error) {
	if len(fields) < 4 {
		return Times{}, fmt.Errorf("cpu line: %w", procfs.ErrShortLine)
	}
	if len(fields) > 8 {
		fields = fields[:8]
	}
	v, err := procfs.Uints(fields)
	if err != nil {
		return Times{}, err
	}
	var col [8]uint64
	copy(col[:], v)
	return Times{
		User: col[0], Nice: col[1], System: col[2], Idle: col[3],
		IOWait: col[4], IRQ: col[5], SoftIRQ: col[6], Steal: col[7],
	}, nil
}
