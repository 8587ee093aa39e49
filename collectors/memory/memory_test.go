package memory

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

const meminfoFixture = `MemTotal:       16000000 kB
MemFree:         4000000 kB
MemAvailable:    9000000 kB
Buffers:         1000000 kB
Cached:          3000000 kB
SwapCached:            0 kB
SReclaimable:    1000000 kB
SwapTotal:       2000000 kB
SwapFree:        1500000 kB
HugePages_Total:       0
`

func TestNormalizeInvariants(t *testing.T) {
	tests := []Sample{
		{Total: 100, Free: 20, Buffers: 10, Cached: 30},
		{Total: 100, Free: 80, Buffers: 30, Cached: 50},
		{Total: 100, Free: 200},
		{},
		{Total: 10, SwapTotal: 5, SwapFree: 9},
	}
	for _, s := range tests {
		b := s.Normalize()
		if b.Used+b.Free+b.Buffers+b.Cached > b.Total {
			t.Errorf("%+v: used+free+buffers+cached = %d > total %d", s, b.Used+b.Free+b.Buffers+b.Cached, b.Total)
		}
		for _, p := range []float64{b.UsedPercent, b.SwapPercent} {
			if p < 0 || p > 100 || math.IsNaN(p) {
				t.Errorf("%+v: percent %v out of range", s, p)
			}
		}
		if b.SwapUsed > b.SwapTotal {
			t.Errorf("swap used %d > total %d", b.SwapUsed, b.SwapTotal)
		}
	}

	b := Sample{Total: 100, Free: 20, Buffers: 10, Cached: 30}.Normalize()
	if b.Used != 40 || b.UsedPercent != 40 {
		t.Errorf("used = %d (%v%%), want 40", b.Used, b.UsedPercent)
	}
}

func TestDeterministicZeroSample(t *testing.T) {
	c := New(Options{Deterministic: true})
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"memory.used.percent", "memory.available.percent", "swap.used.percent"} {
		if v, ok := m.Gauge(key); !ok || v != 0 {
			t.Errorf("%s = %v,%v; want 0,true", key, v, ok)
		}
	}
}

func TestPagingRates(t *testing.T) {
	c := New(Options{Deterministic: true})
	t0 := time.Unix(0, 0)
	c.Feed(Sample{Total: 100, SwapIn: 100, SwapOut: 10, MajorFaults: 1000, Time: t0})
	c.Feed(Sample{Total: 100, SwapIn: 300, SwapOut: 10, MajorFaults: 1500, Time: t0.Add(2 * time.Second)})

	c.Collect(context.Background())
	if c.Primed() {
		t.Error("primed after one sample")
	}
	m, _ := c.Collect(context.Background())
	if !c.Primed() {
		t.Error("not primed after two samples")
	}
	if v, _ := m.Rate("memory.swap.in.rate"); v != 100 {
		t.Errorf("swap in rate = %v, want 100", v)
	}
	if v, _ := m.Rate("memory.swap.out.rate"); v != 0 {
		t.Errorf("swap out rate = %v, want 0", v)
	}
	if v, _ := m.Rate("memory.faults.major.rate"); v != 250 {
		t.Errorf("major fault rate = %v, want 250", v)
	}
}

func TestProcSource(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "meminfo"), []byte(meminfoFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "vmstat"), []byte("nr_free_pages 1\npswpin 7\npswpout 9\npgmajfault 11\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(Options{Deterministic: true})
	c.src = newProcSource(root)

	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	const kb = 1024
	if v, _ := m.Gauge("memory.total.bytes"); v != 16000000*kb {
		t.Errorf("total = %v", v)
	}
	// cached includes SReclaimable: 3000000 + 1000000.
	if v, _ := m.Gauge("memory.cached.bytes"); v != 4000000*kb {
		t.Errorf("cached = %v", v)
	}
	// used = 16M - 4M - 1M - 4M = 7M
	if v, _ := m.Gauge("memory.used.bytes"); v != 7000000*kb {
		t.Errorf("used = %v", v)
	}
	if v, _ := m.Gauge("swap.used.percent"); v != 25 {
		t.Errorf("swap percent = %v, want 25", v)
	}
	if v, _ := m.Counter("memory.faults.major"); v != 11 {
		t.Errorf("major faults = %v", v)
	}
}

func TestProcSourceMissingAndMalformed(t *testing.T) {
	root := t.TempDir()
	c := New(Options{Deterministic: true})
	c.src = newProcSource(root)
	if c.IsAvailable() {
		t.Error("available without meminfo")
	}
	if _, err := c.Collect(context.Background()); collectors.KindOf(err) != collectors.KindUnavailable {
		t.Errorf("kind = %v, want unavailable", collectors.KindOf(err))
	}

	os.WriteFile(filepath.Join(root, "meminfo"), []byte("MemTotal: 10 kB\nbroken line\n"), 0o644)
	if _, err := c.Collect(context.Background()); collectors.KindOf(err) != collectors.KindParse {
		t.Errorf("kind = %v, want parse", collectors.KindOf(err))
	}
}
