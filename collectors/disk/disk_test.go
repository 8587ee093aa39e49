package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

func TestResolveDevice(t *testing.T) {
	known := map[string]bool{
		"sda": true, "nvme0n1": true, "mmcblk0": true, "dm-0": true,
		"md127": true, "loop3": true,
	}
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"sda", "sda", true},
		{"/dev/sda1", "sda", true},
		{"sda12", "sda", true},
		{"nvme0n1p2", "nvme0n1", true},
		{"/dev/nvme0n1", "nvme0n1", true},
		{"mmcblk0p1", "mmcblk0", true},
		{"dm-0", "dm-0", true},
		{"dm-1", "", false},
		{"md127", "md127", true},
		{"md1", "", false},
		{"loop3", "loop3", true},
		{"loop3p1", "loop3", true},
		{"sdb1", "", false},
		{"tmpfs", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveDevice(tt.in, known)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ResolveDevice(%q) = %q,%v; want %q,%v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPartitionBase(t *testing.T) {
	tests := map[string]string{
		"sda1":      "sda",
		"nvme0n1p2": "nvme0n1",
		"nvme0n1":   "nvme0n",
		"mmcblk0p1": "mmcblk0",
		"sda":       "sda",
		"123":       "123",
		"xvda":      "xvda",
	}
	for in, want := range tests {
		if got := partitionBase(in); got != want {
			t.Errorf("partitionBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeep(t *testing.T) {
	tests := []struct {
		fsType, mnt string
		want        bool
	}{
		{"ext4", "/", true},
		{"xfs", "/home", true},
		{"proc", "/proc", false},
		{"overlay", "/var/lib/docker/overlay2/x/merged", false},
		{"tmpfs", "/tmp", true},
		{"tmpfs", "/run", false},
		{"squashfs", "/snap/core/1", false},
		{"cgroup2", "/sys/fs/cgroup", false},
	}
	for _, tt := range tests {
		if got := Keep(tt.fsType, tt.mnt); got != tt.want {
			t.Errorf("Keep(%q, %q) = %v, want %v", tt.fsType, tt.mnt, got, tt.want)
		}
	}
}

func TestUnescapeMount(t *testing.T) {
	if got := unescapeMount(`/mnt/my\040disk`); got != "/mnt/my disk" {
		t.Errorf("unescape = %q", got)
	}
	if got := unescapeMount(`/plain`); got != "/plain" {
		t.Errorf("unescape = %q", got)
	}
	if got := unescapeMount(`/trail\04`); got != `/trail\04` {
		t.Errorf("short escape = %q", got)
	}
}

func TestDeviceRates(t *testing.T) {
	c := New(Options{Deterministic: true})
	t0 := time.Unix(100, 0)
	c.Feed(Sample{Devices: []DeviceSample{{Name: "sda", ReadBytes: 1000, ReadOps: 10, IOMs: 0, WeightedMs: 0}}, Time: t0})
	c.Feed(Sample{Devices: []DeviceSample{{Name: "sda", ReadBytes: 3000, ReadOps: 30, WriteOps: 20, InFlight: 2, IOMs: 500, WeightedMs: 4000}}, Time: t0.Add(2 * time.Second)})

	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Rate("disk.sda.read.rate"); v != 0 {
		t.Errorf("first read rate = %v, want 0", v)
	}
	m, _ = c.Collect(context.Background())
	if v, _ := m.Rate("disk.sda.read.rate"); v != 1000 {
		t.Errorf("read rate = %v, want 1000", v)
	}
	if v, _ := m.Rate("disk.sda.ops.rate"); v != 20 {
		t.Errorf("ops rate = %v, want 20", v)
	}
	if v, _ := m.Gauge("disk.sda.busy.percent"); v != 25 {
		t.Errorf("busy = %v, want 25", v)
	}
	if v, _ := m.Gauge("disk.sda.queue.depth"); v != 2 {
		t.Errorf("queue depth = %v, want 2", v)
	}
	devs := c.Devices()
	if len(devs) != 1 || devs[0].InFlight != 2 {
		t.Errorf("Devices = %+v", devs)
	}
}

func TestMountsJoinDeviceCounters(t *testing.T) {
	c := New(Options{Deterministic: true})
	t0 := time.Unix(0, 0)
	mounts := []Mount{
		{MountPoint: "/", Device: "/dev/nvme0n1p2", Total: 100},
		{MountPoint: "/boot", Device: "/dev/sda1", Total: 100},
		{MountPoint: "/data", Device: "/dev/mapper/vg-data", Total: 100},
	}
	c.Feed(Sample{Time: t0, Mounts: mounts, Devices: []DeviceSample{
		{Name: "nvme0n1"}, {Name: "sda"}, {Name: "sda1"},
	}})
	c.Feed(Sample{Time: t0.Add(time.Second), Mounts: mounts, Devices: []DeviceSample{
		{Name: "nvme0n1", ReadBytes: 4096, WriteBytes: 1024}, {Name: "sda", ReadBytes: 999}, {Name: "sda1", WriteBytes: 512},
	}})

	c.Collect(context.Background())
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"/": "nvme0n1", "/boot": "sda1", "/data": ""}
	for _, mt := range c.Mounts() {
		if mt.IODevice != want[mt.MountPoint] {
			t.Errorf("%s IODevice = %q, want %q", mt.MountPoint, mt.IODevice, want[mt.MountPoint])
		}
	}
	if v, _ := m.Rate("disk.mount./.read.rate"); v != 4096 {
		t.Errorf("/ read rate = %v, want 4096", v)
	}
	if v, _ := m.Rate("disk.mount./.write.rate"); v != 1024 {
		t.Errorf("/ write rate = %v, want 1024", v)
	}
	if v, _ := m.Rate("disk.mount./boot.write.rate"); v != 512 {
		t.Errorf("/boot write rate = %v, want 512", v)
	}
	if _, ok := m.Rate("disk.mount./data.read.rate"); ok {
		t.Error("unresolved mount should have no rate")
	}
	if mounts[0].IODevice != "" {
		t.Error("fed sample was modified")
	}
}

func TestEmptySampleIsNotAnError(t *testing.T) {
	c := New(Options{Deterministic: true})
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("empty sample produced %d metrics", m.Len())
	}
	if len(c.Mounts()) != 0 || len(c.Devices()) != 0 {
		t.Error("expected no mounts or devices")
	}
}

func TestProcSource(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "self"), 0o755)
	mounts := "/dev/sda1 / ext4 rw 0 0\nproc /proc proc rw 0 0\ntmpfs /run tmpfs rw 0 0\ntmpfs /tmp tmpfs rw 0 0\n/dev/sdb1 /mnt/my\\040disk ext4 rw 0 0\n/dev/sdc1 /stale nfs rw 0 0\n"
	os.WriteFile(filepath.Join(root, "self", "mounts"), []byte(mounts), 0o644)
	diskstats := "   8       0 sda 100 0 200 10 50 0 400 20 1 30 40 0 0 0 0\n" +
		"   8       1 sda1 90 0 180 9 45 0 360 18 0 25 30 0 0 0 0\n" +
		"   7       0 loop0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n" +
		"   1       0 ram0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0\n"
	os.WriteFile(filepath.Join(root, "diskstats"), []byte(diskstats), 0o644)

	src := newProcSource(root)
	src.statfs = func(path string) (usage, error) {
		if path == "/stale" {
			return usage{}, errors.New("stale handle")
		}
		return usage{total: 1000, used: 250, free: 750}, nil
	}
	c := New(Options{Deterministic: true})
	c.src = src

	if !c.IsAvailable() {
		t.Fatal("not available with mounts present")
	}
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	mts := c.Mounts()
	var points []string
	for _, mt := range mts {
		points = append(points, mt.MountPoint)
	}
	want := []string{"/", "/tmp", "/mnt/my disk"}
	if len(points) != len(want) {
		t.Fatalf("mounts = %v, want %v", points, want)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("mount[%d] = %q, want %q", i, points[i], want[i])
		}
	}
	if v, _ := m.Gauge("disk.mount./.used.percent"); v != 25 {
		t.Errorf("used percent = %v", v)
	}
	devs := c.Devices()
	if len(devs) != 1 || devs[0].Name != "sda" {
		t.Errorf("devices = %+v, want sda only", devs)
	}
	if v, _ := m.Counter("disk.sda.read.bytes"); v != 200*512 {
		t.Errorf("read bytes = %d", v)
	}
}

func TestProcSourceMissingMounts(t *testing.T) {
	c := New(Options{Deterministic: true})
	c.src = newProcSource(t.TempDir())
	if c.IsAvailable() {
		t.Error("available without mounts")
	}
	_, err := c.Collect(context.Background())
	if collectors.KindOf(err) != collectors.KindUnavailable {
		t.Errorf("kind = %v, want unavailable", collectors.KindOf(err))
	}
}
