package network

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

const netDevFixture = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo:  5000      50    0    0    0     0          0         0     5000      50    0    0    0     0       0          0
  eth0: 1000000   1000    2    0    0     0          0         0   500000     800    1    0    0     0       0          0
 wlan0:       0       0    0    0    0     0          0         0        0       0    0    0    0     0       0          0
`

func TestIsLoopback(t *testing.T) {
	for name, want := range map[string]bool{"lo": true, "lo0": true, "lo1": true, "local": false, "eth0": false, "l": false} {
		if got := IsLoopback(name); got != want {
			t.Errorf("IsLoopback(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRatesAndPrimary(t *testing.T) {
	c := New(Options{Deterministic: true})
	t0 := time.Unix(0, 0)
	c.Feed(Sample{Time: t0, Interfaces: []InterfaceSample{
		{Name: "eth0", RxBytes: 1000, TxBytes: 1000, RxPackets: 10},
		{Name: "wlan0", RxBytes: 0, TxBytes: 0},
		{Name: "lo", RxBytes: 0},
	}})
	c.Feed(Sample{Time: t0.Add(500 * time.Millisecond), Interfaces: []InterfaceSample{
		{Name: "eth0", RxBytes: 2000, TxBytes: 1500, RxPackets: 20},
		{Name: "wlan0", RxBytes: 5000, TxBytes: 0},
		{Name: "lo", RxBytes: 99999},
	}})

	c.Collect(context.Background())
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Rate("net.eth0.rx.rate"); v != 2000 {
		t.Errorf("eth0 rx rate = %v, want 2000", v)
	}
	if v, _ := m.Rate("net.eth0.rx.packets.rate"); v != 20 {
		t.Errorf("eth0 rx packet rate = %v, want 20", v)
	}
	if _, ok := m.Counter("net.lo.rx.bytes"); ok {
		t.Error("loopback should be excluded by default")
	}
	if got := c.Primary(); got != "wlan0" {
		t.Errorf("Primary = %q, want wlan0", got)
	}
	if v, _ := m.Rate("net.primary.rx.rate"); v != 10000 {
		t.Errorf("primary rx = %v, want 10000", v)
	}
}

func TestErrorRates(t *testing.T) {
	c := New(Options{Deterministic: true})
	t0 := time.Unix(0, 0)
	c.Feed(Sample{Time: t0, Interfaces: []InterfaceSample{{Name: "eth0", RxErrs: 10, TxErrs: 4}}})
	c.Feed(Sample{Time: t0.Add(2 * time.Second), Interfaces: []InterfaceSample{{Name: "eth0", RxErrs: 16, TxErrs: 4}}})

	m, _ := c.Collect(context.Background())
	if v, ok := m.Rate("net.eth0.rx.errs.rate"); !ok || v != 0 {
		t.Errorf("first rx errs rate = %v (%v), want 0", v, ok)
	}
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Rate("net.eth0.rx.errs.rate"); v != 3 {
		t.Errorf("rx errs rate = %v, want 3", v)
	}
	if v, _ := m.Rate("net.eth0.tx.errs.rate"); v != 0 {
		t.Errorf("tx errs rate = %v, want 0", v)
	}
	if v, _ := m.Counter("net.eth0.rx.errs"); v != 16 {
		t.Errorf("rx errs counter = %v, want 16", v)
	}
	if st := c.Interfaces(); len(st) != 1 || st[0].RxErrsRate != 3 {
		t.Errorf("Interfaces() = %+v", st)
	}
}

func TestIncludeLoopback(t *testing.T) {
	c := New(Options{Deterministic: true, IncludeLoopback: true})
	c.Feed(Sample{Interfaces: []InterfaceSample{{Name: "lo", RxBytes: 1}}})
	m, _ := c.Collect(context.Background())
	if _, ok := m.Counter("net.lo.rx.bytes"); !ok {
		t.Error("loopback missing with IncludeLoopback")
	}
}

func TestZeroInterfaces(t *testing.T) {
	c := New(Options{Deterministic: true})
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.Primary() != "" {
		t.Errorf("Primary = %q, want empty", c.Primary())
	}
	if v, ok := m.Rate("net.primary.rx.rate"); !ok || v != 0 {
		t.Errorf("primary rx = %v,%v", v, ok)
	}
}

func TestCounterWidthRecordedOnFirstRead(t *testing.T) {
	c := New(Options{Deterministic: true})
	c.intSize = 32
	t0 := time.Unix(0, 0)
	c.Feed(Sample{Time: t0, Interfaces: []InterfaceSample{
		{Name: "eth0", RxBytes: math.MaxUint32 - 99},
		{Name: "eth1", RxBytes: math.MaxUint32 + 1},
	}})
	c.Feed(Sample{Time: t0.Add(time.Second), Interfaces: []InterfaceSample{
		{Name: "eth0", RxBytes: 100},
		{Name: "eth1", RxBytes: math.MaxUint32 + 101},
	}})
	c.Collect(context.Background())
	m, _ := c.Collect(context.Background())

	stats := c.Interfaces()
	if stats[0].Width != collectors.Width32 || stats[1].Width != collectors.Width64 {
		t.Errorf("widths = %d,%d; want 32,64", stats[0].Width, stats[1].Width)
	}
	if v, _ := m.Rate("net.eth0.rx.rate"); v != 200 {
		t.Errorf("wrapped eth0 rate = %v, want 200", v)
	}
	if v, _ := m.Rate("net.eth1.rx.rate"); v != 100 {
		t.Errorf("eth1 rate = %v, want 100", v)
	}
}

func TestProcSource(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "net"), 0o755)
	os.WriteFile(filepath.Join(root, "net", "dev"), []byte(netDevFixture), 0o644)

	c := New(Options{Deterministic: true})
	c.src = newProcSource(root)
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if v, _ := m.Counter("net.eth0.rx.bytes"); v != 1000000 {
		t.Errorf("eth0 rx bytes = %d", v)
	}
	if v, _ := m.Counter("net.eth0.tx.bytes"); v != 500000 {
		t.Errorf("eth0 tx bytes = %d", v)
	}
	if v, _ := m.Counter("net.eth0.rx.errs"); v != 2 {
		t.Errorf("eth0 rx errs = %d", v)
	}
	if len(c.Interfaces()) != 2 {
		t.Errorf("interfaces = %+v, want eth0 and wlan0", c.Interfaces())
	}

	os.WriteFile(filepath.Join(root, "net", "dev"), []byte("h1\nh2\n eth0: 1 2 3\n"), 0o644)
	if _, err := c.Collect(context.Background()); collectors.KindOf(err) != collectors.KindParse {
		t.Errorf("kind = %v, want parse", collectors.KindOf(err))
	}
}
