package memory

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// procSource reads /proc/meminfo and /proc/vmstat.
type procSource struct {
	fs procfs.FS
}

func newProcSource(root string) *procSource {
	return &procSource{fs: procfs.FS{Root: root}}
}

func (p *procSource) available() bool { return p.fs.Exists("meminfo") }

func (p *procSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}
	var sreclaimable uint64
	err := p.fs.Lines(func(_ int, line string) error {
		key, v, err := procfs.KV(line)
		if err != nil {
			return err
		}
		switch key {
		case "MemTotal":
			s.Total = v
		case "MemFree":
			s.Free = v
		case "MemAvailable":
			s.Available = v
		case "Buffers":
			s.Buffers = v
		case "Cached":
			s.Cached = v
		case "SReclaimable":
			sreclaimable = v
		case "SwapTotal":
			s.SwapTotal = v
		case "SwapFree":
			s.SwapFree = v
		}
		return nil
	}, "meminfo")
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("meminfo"), err)
	}
	// Reclaimable slab is page cache in everything but name.
	s.Cached += sreclaimable
	if s.Available == 0 {
		s.Available = s.Free + s.Buffers + s.Cached
	}

	// vmstat is optional in containers; paging rates stay zero without it.
	_ = p.fs.Lines(func(_ int, line string) error {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil
		}
		v, err := strconv.ParseUint(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil
		}
		switch key {
		case "pswpin":
			s.SwapIn = v
		case "pswpout":
			s.SwapOut = v
		case "pgmajfault":
			s.MajorFaults = v
		}
		return nil
	}, "vmstat")
	return s, nil
}
