package analyzers

import (
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// Container is resource usage of one container cgroup.
type Container struct {
	ID      string
	Runtime string
	Path    string
	// CPUPercent is relative to one core, like process cpu%.
	CPUPercent  float64
	MemoryBytes uint64
	// MemoryLimit is 0 when unlimited.
	MemoryLimit uint64
	Pids        uint64
}

// MemoryPercent is usage over limit, or 0 without a limit.
func (c Container) MemoryPercent() float64 {
	if c.MemoryLimit == 0 {
		return 0
	}
	return min(100, float64(c.MemoryBytes)/float64(c.MemoryLimit)*100)
}

// ShortID returns the first 12 characters of the container ID.
func (c Container) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

var containerScope = regexp.MustCompile(`^(docker|cri-containerd|containerd|libpod|crio)-([0-9a-f]{12,64})\.scope$`)

type cpuMark struct {
	at    time.Time
	usage uint64
}

// ContainerAnalyzer reads cgroup v2 scopes for docker, containerd, podman and
// cri-o containers.
type ContainerAnalyzer struct {
	fs   procfs.FS
	now  func() time.Time
	prev map[string]cpuMark
}

// NewContainerAnalyzer reads the unified hierarchy at cgroupRoot
// (/sys/fs/cgroup by default).
func NewContainerAnalyzer(cgroupRoot string) *ContainerAnalyzer {
	if cgroupRoot == "" {
		cgroupRoot = "/sys/fs/cgroup"
	}
	return &ContainerAnalyzer{fs: procfs.FS{Root: cgroupRoot}, now: time.Now, prev: make(map[string]cpuMark)}
}

// Available reports whether the unified hierarchy is mounted.
func (a *ContainerAnalyzer) Available() bool { return a.fs.Exists("cgroup.controllers") }

// Containers lists container cgroups sorted by ID.
func (a *ContainerAnalyzer) Containers() ([]Container, error) {
	var dirs []string
	for _, pattern := range []string{
		"system.slice/*.scope",
		"machine.slice/*.scope",
		"kubepods.slice/*/*/*.scope",
		"user.slice/*/user@*.service/*/*.scope",
	} {
		m, err := a.fs.Glob(pattern)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, m...)
	}

	now := a.now()
	seen := make(map[string]cpuMark)
	var out []Container
	for _, dir := range dirs {
		m := containerScope.FindStringSubmatch(path.Base(dir))
		if m == nil {
			continue
		}
		c := Container{ID: m[2], Runtime: runtimeName(m[1]), Path: dir}
		c.MemoryBytes, _ = a.fs.Uint(dir, "memory.current")
		if lim, err := a.fs.String(dir, "memory.max"); err == nil && lim != "max" {
			c.MemoryLimit, _ = a.fs.Uint(dir, "memory.max")
		}
		c.Pids, _ = a.fs.Uint(dir, "pids.current")

		var usage uint64
		var ok bool
		_ = a.fs.Lines(func(_ int, line string) error {
			f := strings.Fields(line)
			if len(f) == 2 && f[0] == "usage_usec" {
				if v, err := strconv.ParseUint(f[1], 10, 64); err == nil {
					usage, ok = v, true
				}
			}
			return nil
		}, dir, "cpu.stat")
		if ok {
			seen[c.ID] = cpuMark{at: now, usage: usage}
			if prev, had := a.prev[c.ID]; had && usage >= prev.usage {
				if dt := now.Sub(prev.at); dt > 0 {
					c.CPUPercent = float64(usage-prev.usage) / float64(dt.Microseconds()) * 100
				}
			}
		}
		out = append(out, c)
	}
	a.prev = seen
	slices.SortFunc(out, func(x, y Container) int { return strings.Compare(x.ID, y.ID) })
	return out, nil
}

func runtimeName(prefix string) string {
	switch prefix {
	case "libpod":
		return "podman"
	case "cri-containerd":
		return "containerd"
	default:
		return prefix
	}
}
