package analyzers

import (
	"gitlab.com/tinyland/lab/ttop/collectors/disk"
)

// IoWorkload describes the access pattern of a device.
type IoWorkload int

const (
	WorkloadIdle IoWorkload = iota
	WorkloadSequential
	WorkloadRandom
	WorkloadMixed
)

func (w IoWorkload) String() string {
	switch w {
	case WorkloadSequential:
		return "sequential"
	case WorkloadRandom:
		return "random"
	case WorkloadMixed:
		return "mixed"
	default:
		return "idle"
	}
}

const (
	// MinOpsRate is the throughput below which no latency is estimated.
	MinOpsRate = 1.0

	sequentialOpSize = 128 << 10
	randomOpSize     = 16 << 10
)

// DiskLatency is the Little's Law estimate for one device.
type DiskLatency struct {
	Device string
	// QueueDepth is L, ops in flight.
	QueueDepth float64
	// OpsRate is λ, ops per second.
	OpsRate float64
	// Wait is W = L/λ in seconds.
	Wait     float64
	Workload IoWorkload
}

// EstimateWait returns W = L/λ. ok is false when λ is below MinOpsRate.
func EstimateWait(queueDepth, opsRate float64) (wait float64, ok bool) {
	if opsRate < MinOpsRate {
		return 0, false
	}
	return max(0, queueDepth) / opsRate, true
}

// ClassifyWorkload infers the access pattern from the mean op size.
func ClassifyWorkload(opsRate, bytesRate float64) IoWorkload {
	if opsRate < MinOpsRate {
		return WorkloadIdle
	}
	size := bytesRate / opsRate
	switch {
	case size >= sequentialOpSize:
		return WorkloadSequential
	case size <= randomOpSize:
		return WorkloadRandom
	default:
		return WorkloadMixed
	}
}

// AnalyzeDiskIo estimates latency for one device. ok is false when the
// device is too quiet for a meaningful estimate.
func AnalyzeDiskIo(d disk.DeviceStats) (DiskLatency, bool) {
	ops := d.OpsRate()
	wait, ok := EstimateWait(d.QueueDepth, ops)
	if !ok {
		return DiskLatency{Device: d.Name, Workload: WorkloadIdle}, false
	}
	return DiskLatency{
		Device:     d.Name,
		QueueDepth: d.QueueDepth,
		OpsRate:    ops,
		Wait:       wait,
		Workload:   ClassifyWorkload(ops, d.BytesRate()),
	}, true
}

// AnalyzeDisks returns estimates for every device busy enough to measure.
func AnalyzeDisks(devs []disk.DeviceStats) []DiskLatency {
	var out []DiskLatency
	for _, d := range devs {
		if l, ok := AnalyzeDiskIo(d); ok {
			out = append(out, l)
		}
	}
	return out
}
