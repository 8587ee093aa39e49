package disk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

const sectorSize = 512

// procSource reads /proc/self/mounts, statfs(2) and /proc/diskstats.
type procSource struct {
	fs procfs.FS
	// statfs is overridable for tests.
	statfs func(path string) (usage, error)
}

func newProcSource(root string) *procSource {
	return &procSource{fs: procfs.FS{Root: root}, statfs: statfs}
}

func (p *procSource) available() bool {
	return p.fs.Exists("self", "mounts")
}

func (p *procSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}

	devices, err := p.readDiskstats()
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("diskstats"), err)
	}
	s.Devices = devices

	seen := make(map[string]bool)
	err = p.fs.Lines(func(_ int, line string) error {
		f := strings.Fields(line)
		if len(f) < 3 {
			return fmt.Errorf("mount entry: %w", procfs.ErrShortLine)
		}
		dev, mnt, fsType := unescapeMount(f[0]), unescapeMount(f[1]), f[2]
		if !Keep(fsType, mnt) || seen[mnt] {
			return nil
		}
		seen[mnt] = true
		u, err := p.statfs(mnt)
		if err != nil {
			// Stale network mounts and permission-denied mounts are skipped.
			return nil
		}
		if u.total == 0 {
			return nil
		}
		s.Mounts = append(s.Mounts, Mount{
			MountPoint: mnt, Device: dev, FSType: fsType,
			Total: u.total, Used: u.used, Free: u.free,
		})
		return nil
	}, "self", "mounts")
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("self", "mounts"), err)
	}
	return s, nil
}

// readDiskstats parses /proc/diskstats, keeping whole devices only. A
// missing file yields no devices.
func (p *procSource) readDiskstats() ([]DeviceSample, error) {
	var all []DeviceSample
	err := p.fs.Lines(func(_ int, line string) error {
		f := strings.Fields(line)
		if len(f) < 14 {
			return fmt.Errorf("diskstats entry: %w", procfs.ErrShortLine)
		}
		v, err := procfs.Uints(f[3:14])
		if err != nil {
			return err
		}
		all = append(all, DeviceSample{
			Name:       f[2],
			ReadOps:    v[0],
			ReadBytes:  v[2] * sectorSize,
			ReadMs:     v[3],
			WriteOps:   v[4],
			WriteBytes: v[6] * sectorSize,
			WriteMs:    v[7],
			InFlight:   v[8],
			IOMs:       v[9],
			WeightedMs: v[10],
		})
		return nil
	}, "diskstats")
	if err != nil {
		if !p.fs.Exists("diskstats") {
			return nil, nil
		}
		return nil, err
	}
	return wholeDevices(all), nil
}

// wholeDevices drops partitions of listed devices, RAM disks and idle
// loop devices.
func wholeDevices(all []DeviceSample) []DeviceSample {
	known := make(map[string]bool, len(all))
	for _, d := range all {
		known[d.Name] = true
	}
	out := all[:0]
	for _, d := range all {
		if base := partitionBase(d.Name); base != d.Name && known[base] {
			continue
		}
		if strings.HasPrefix(d.Name, "ram") {
			continue
		}
		if strings.HasPrefix(d.Name, "loop") && d.ReadOps == 0 && d.WriteOps == 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}
