package analyzers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const dockerID = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func writeCgroup(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	os.MkdirAll(dir, 0o755)
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestContainerAnalyzer(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "cgroup.controllers"), []byte("cpu memory pids\n"), 0o644)
	docker := filepath.Join(root, "system.slice", "docker-"+dockerID+".scope")
	writeCgroup(t, docker, map[string]string{
		"memory.current": "104857600\n",
		"memory.max":     "209715200\n",
		"pids.current":   "7\n",
		"cpu.stat":       "usage_usec 1000000\nuser_usec 600000\nsystem_usec 400000\n",
	})
	writeCgroup(t, filepath.Join(root, "machine.slice", "libpod-abcdefabcdef1234.scope"), map[string]string{
		"memory.current": "1024\n",
		"memory.max":     "max\n",
	})
	writeCgroup(t, filepath.Join(root, "system.slice", "session-1.scope"), map[string]string{
		"memory.current": "1\n",
	})

	a := NewContainerAnalyzer(root)
	now := time.Unix(50, 0)
	a.now = func() time.Time { return now }
	if !a.Available() {
		t.Fatal("Available = false")
	}
	got, err := a.Containers()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d containers: %+v", len(got), got)
	}
	d := got[0]
	if d.Runtime != "docker" || d.ShortID() != dockerID[:12] || d.Pids != 7 || d.MemoryPercent() != 50 || d.CPUPercent != 0 {
		t.Errorf("docker = %+v", d)
	}
	p := got[1]
	if p.Runtime != "podman" || p.MemoryLimit != 0 || p.MemoryPercent() != 0 {
		t.Errorf("podman = %+v", p)
	}

	writeCgroup(t, docker, map[string]string{"cpu.stat": "usage_usec 1500000\n"})
	now = now.Add(time.Second)
	got, _ = a.Containers()
	if got[0].CPUPercent != 50 {
		t.Errorf("cpu = %v, want 50", got[0].CPUPercent)
	}
	if !strings.HasPrefix(got[0].Path, "system.slice") {
		t.Errorf("path = %q", got[0].Path)
	}
}

func TestContainerAnalyzerEmpty(t *testing.T) {
	a := NewContainerAnalyzer(t.TempDir())
	if a.Available() {
		t.Error("Available on empty root")
	}
	got, err := a.Containers()
	if err != nil || len(got) != 0 {
		t.Errorf("got %+v, %v", got, err)
	}
}
