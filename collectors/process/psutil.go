package process

import (
	"context"
	"time"

	gcpu "github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	gproc "github.com/shirou/gopsutil/v3/process"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

const ticksPerSecond = 100

// psutilSource snapshots processes through gopsutil.
type psutilSource struct{}

func (psutilSource) available() bool {
	_, err := gproc.Pids()
	return err == nil
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	procs, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, "process.Processes", err)
	}
	s := Sample{Time: time.Now()}
	if times, err := gcpu.TimesWithContext(ctx, false); err == nil && len(times) > 0 {
		t := times[0]
		s.TotalTicks = uint64((t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal) * ticksPerSecond)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
	}
	if n, err := gcpu.CountsWithContext(ctx, true); err == nil {
		s.Cores = n
	}

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		r := RawProcess{PID: int(p.Pid), Name: name}
		if ppid, err := p.PpidWithContext(ctx); err == nil {
			r.PPID = int(ppid)
		}
		if u, err := p.UsernameWithContext(ctx); err == nil {
			r.User = u
		}
		if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
			r.State = stateLetter(st[0])
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			r.Threads = int(n)
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			r.RSS, r.VSZ = mi.RSS, mi.VMS
		}
		if t, err := p.TimesWithContext(ctx); err == nil && t != nil {
			r.Ticks = uint64((t.User + t.System) * ticksPerSecond)
		}
		if ioc, err := p.IOCountersWithContext(ctx); err == nil && ioc != nil {
			r.ReadBytes, r.WriteBytes, r.HasIO = ioc.ReadBytes, ioc.WriteBytes, true
		}
		if cmd, err := p.CmdlineWithContext(ctx); err == nil {
			r.Cmdline = cmd
		}
		s.Procs = append(s.Procs, r)
	}
	return s, nil
}

// stateLetter maps gopsutil's status words to kernel state letters.
func stateLetter(status string) string {
	switch status {
	case gproc.Running:
		return "R"
	case gproc.Sleep:
		return "S"
	case gproc.Stop:
		return "T"
	case gproc.Idle:
		return "I"
	case gproc.Zombie:
		return "Z"
	case gproc.Wait, gproc.Blocked, gproc.Lock:
		return "D"
	default:
		return "?"
	}
}
