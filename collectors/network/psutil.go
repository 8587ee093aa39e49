package network

import (
	"context"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

// psutilSource reads interface counters through gopsutil.
type psutilSource struct{}

func (psutilSource) available() bool {
	_, err := gnet.IOCounters(true)
	return err == nil
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	counters, err := gnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, "net.IOCounters", err)
	}
	s := Sample{Time: time.Now()}
	for _, c := range counters {
		s.Interfaces = append(s.Interfaces, InterfaceSample{
			Name:      c.Name,
			RxBytes:   c.BytesRecv,
			TxBytes:   c.BytesSent,
			RxPackets: c.PacketsRecv,
			TxPackets: c.PacketsSent,
			RxErrs:    c.Errin,
			TxErrs:    c.Errout,
		})
	}
	return s, nil
}
