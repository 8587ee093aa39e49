package memory

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

// psutilSource reads memory through gopsutil on non-Linux hosts.
type psutilSource struct{}

func (psutilSource) available() bool {
	_, err := mem.VirtualMemory()
	return err == nil
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, "mem.VirtualMemory", err)
	}
	s := Sample{
		Total:     vm.Total,
		Free:      vm.Free,
		Available: vm.Available,
		Buffers:   vm.Buffers,
		Cached:    vm.Cached,
		Time:      time.Now(),
	}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		page := uint64(os.Getpagesize())
		s.SwapTotal = sw.Total
		s.SwapFree = sw.Free
		s.SwapIn = sw.Sin / page
		s.SwapOut = sw.Sout / page
		s.MajorFaults = sw.PgMajFault
	}
	return s, nil
}
