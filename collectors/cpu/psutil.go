package cpu

import (
	"context"
	"time"

	gcpu "github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

// ticksPerSecond converts gopsutil's float seconds back to USER_HZ ticks so
// both back-ends produce the same counter units.
const ticksPerSecond = 100

// psutilSource reads CPU counters through gopsutil on non-Linux hosts.
type psutilSource struct{}

func (psutilSource) available() bool {
	_, err := gcpu.Times(false)
	return err == nil
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}

	agg, err := gcpu.TimesWithContext(ctx, false)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, "cpu.Times", err)
	}
	if len(agg) > 0 {
		s.Aggregate = fromStat(agg[0])
	}
	if per, err := gcpu.TimesWithContext(ctx, true); err == nil {
		for _, st := range per {
			s.Cores = append(s.Cores, fromStat(st))
		}
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1, s.Load5, s.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	if infos, err := gcpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		var sum float64
		for _, in := range infos {
			sum += in.Mhz
		}
		s.FreqMHz = sum / float64(len(infos))
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		s.Uptime = time.Duration(up) * time.Second
	}
	return s, nil
}

func fromStat(st gcpu.TimesStat) Times {
	tick := func(secs float64) uint64 {
		if secs <= 0 {
			return 0
		}
		return uint64(secs * ticksPerSecond)
	}
	return Times{
		User:    tick(st.User),
		Nice:    tick(st.Nice),
		System:  tick(st.System),
		Idle:    tick(st.Idle),
		IOWait:  tick(st.Iowait),
		IRQ:     tick(st.Irq),
		SoftIRQ: tick(st.Softirq),
		Steal:   tick(st.Steal),
	}
}
