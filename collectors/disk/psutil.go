package disk

import (
	"context"
	"sort"
	"time"

	gdisk "github.com/shirou/gopsutil/v3/disk"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

// psutilSource reads partitions and I/O counters through gopsutil.
type psutilSource struct{}

func (psutilSource) available() bool {
	_, err := gdisk.Partitions(false)
	return err == nil
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}
	parts, err := gdisk.PartitionsWithContext(ctx, false)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, "disk.Partitions", err)
	}
	seen := make(map[string]bool)
	for _, p := range parts {
		if !Keep(p.Fstype, p.Mountpoint) || seen[p.Mountpoint] {
			continue
		}
		seen[p.Mountpoint] = true
		u, err := gdisk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		s.Mounts = append(s.Mounts, Mount{
			MountPoint: p.Mountpoint, Device: p.Device, FSType: p.Fstype,
			Total: u.Total, Used: u.Used, Free: u.Free,
		})
	}

	io, err := gdisk.IOCountersWithContext(ctx)
	if err != nil {
		return s, nil
	}
	for name, c := range io {
		s.Devices = append(s.Devices, DeviceSample{
			Name:       name,
			ReadBytes:  c.ReadBytes,
			WriteBytes: c.WriteBytes,
			ReadOps:    c.ReadCount,
			WriteOps:   c.WriteCount,
			ReadMs:     c.ReadTime,
			WriteMs:    c.WriteTime,
			InFlight:   c.IopsInProgress,
			IOMs:       c.IoTime,
			WeightedMs: c.WeightedIO,
		})
	}
	sort.Slice(s.Devices, func(i, j int) bool { return s.Devices[i].Name < s.Devices[j].Name })
	s.Devices = wholeDevices(s.Devices)
	return s, nil
}
