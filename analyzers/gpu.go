package analyzers

import (
	"bufio"
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/internal/command"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// nvidiaSmiTimeout bounds each nvidia-smi call.
const nvidiaSmiTimeout = 400 * time.Millisecond

// GpuProcess is one process's use of a GPU.
type GpuProcess struct {
	PID    int
	Name   string
	Driver string
	// Engines is busy percent per engine ("render", "video", ...). Empty for
	// nvidia-smi rows.
	Engines map[string]float64
	// Busy is the busiest engine's percent.
	Busy        float64
	MemoryBytes uint64
	Source      string
}

type drmClient struct {
	pid int
	id  string
}

type drmSample struct {
	at      time.Time
	engines map[string]uint64
}

// GpuProcessAnalyzer attributes GPU usage to processes from DRM fdinfo and,
// when present, nvidia-smi.
type GpuProcessAnalyzer struct {
	fs   procfs.FS
	run  command.Runner
	now  func() time.Time
	prev map[drmClient]drmSample
}

// NewGpuProcessAnalyzer reads fdinfo below procRoot. A nil run disables the
// nvidia-smi probe.
func NewGpuProcessAnalyzer(procRoot string, run command.Runner) *GpuProcessAnalyzer {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &GpuProcessAnalyzer{
		fs:   procfs.FS{Root: procRoot},
		run:  run,
		now:  time.Now,
		prev: make(map[drmClient]drmSample),
	}
}

// NvidiaSmi is the default runner for the nvidia-smi probe.
func NvidiaSmi() command.Runner { return command.Bounded(nvidiaSmiTimeout) }

// Processes returns GPU users sorted by busy percent, then memory, then pid.
func (a *GpuProcessAnalyzer) Processes(ctx context.Context) ([]GpuProcess, error) {
	out := a.scanDRM()
	if a.run != nil {
		if rows, err := a.queryNvidia(ctx); err == nil {
			out = append(out, rows...)
		}
	}
	slices.SortStableFunc(out, func(x, y GpuProcess) int {
		if c := cmpFloat(y.Busy, x.Busy); c != 0 {
			return c
		}
		if x.MemoryBytes != y.MemoryBytes {
			if x.MemoryBytes > y.MemoryBytes {
				return -1
			}
			return 1
		}
		return x.PID - y.PID
	})
	return out, nil
}

func (a *GpuProcessAnalyzer) scanDRM() []GpuProcess {
	now := a.now()
	entries, err := os.ReadDir(a.fs.Root)
	if err != nil {
		return nil
	}
	seen := make(map[drmClient]drmSample)
	var out []GpuProcess
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		fds, err := os.ReadDir(a.fs.Path(e.Name(), "fd"))
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(a.fs.Path(e.Name(), "fd", fd.Name()))
			if err != nil || !strings.HasPrefix(link, "/dev/dri/") {
				continue
			}
			info, err := parseFdinfo(a.fs.Path(e.Name(), "fdinfo", fd.Name()))
			if err != nil || info.driver == "" {
				continue
			}
			key := drmClient{pid: pid, id: info.clientID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = drmSample{at: now, engines: info.engines}

			p := GpuProcess{
				PID:         pid,
				Driver:      info.driver,
				Engines:     make(map[string]float64, len(info.engines)),
				MemoryBytes: info.memory,
				Source:      "drm",
			}
			if name, err := a.fs.String(e.Name(), "comm"); err == nil {
				p.Name = name
			}
			if prev, ok := a.prev[key]; ok {
				if dt := now.Sub(prev.at); dt > 0 {
					for eng, ns := range info.engines {
						old, ok := prev.engines[eng]
						if !ok || ns < old {
							continue
						}
						pct := min(100, float64(ns-old)/float64(dt.Nanoseconds())*100)
						p.Engines[eng] = pct
						p.Busy = max(p.Busy, pct)
					}
				}
			}
			out = append(out, p)
		}
	}
	a.prev = seen
	return out
}

type fdinfo struct {
	driver   string
	clientID string
	engines  map[string]uint64
	memory   uint64
}

func parseFdinfo(path string) (fdinfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return fdinfo{}, err
	}
	defer f.Close()
	info := fdinfo{engines: make(map[string]uint64)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch {
		case k == "drm-driver":
			info.driver = v
		case k == "drm-client-id":
			info.clientID = v
		case strings.HasPrefix(k, "drm-engine-") && !strings.HasPrefix(k, "drm-engine-capacity-"):
			num, _, _ := strings.Cut(v, " ")
			if ns, err := strconv.ParseUint(num, 10, 64); err == nil {
				info.engines[strings.TrimPrefix(k, "drm-engine-")] = ns
			}
		case strings.HasPrefix(k, "drm-memory-") || strings.HasPrefix(k, "drm-resident-"):
			info.memory += parseDRMSize(v)
		}
	}
	return info, sc.Err()
}

// parseDRMSize parses "1024 KiB" style values into bytes.
func parseDRMSize(v string) uint64 {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}
	if len(fields) > 1 {
		switch fields[1] {
		case "KiB":
			n <<= 10
		case "MiB":
			n <<= 20
		case "GiB":
			n <<= 30
		}
	}
	return n
}

func (a *GpuProcessAnalyzer) queryNvidia(ctx context.Context) ([]GpuProcess, error) {
	out, err := a.run(ctx, "nvidia-smi",
		"--query-compute-apps=pid,process_name,used_memory",
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil, err
	}
	return parseNvidiaApps(out), nil
}

// parseNvidiaApps parses "pid, name, MiB" rows. Malformed rows are skipped.
func parseNvidiaApps(out string) []GpuProcess {
	var procs []GpuProcess
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 3 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		mib, _ := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		procs = append(procs, GpuProcess{
			PID:         pid,
			Name:        strings.TrimSpace(parts[1]),
			Driver:      "nvidia",
			MemoryBytes: uint64(mib * (1 << 20)),
			Source:      "nvidia-smi",
		})
	}
	return procs
}
