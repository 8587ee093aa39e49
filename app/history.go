package app

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/ringbuf"
)

// histories holds every time-series ring the panels draw from. Rings are
// created lazily for keyed series and dropped when their key disappears.
type histories struct {
	capacity int

	cpu   *ringbuf.Ring[float64]
	cores []*ringbuf.Ring[float64]
	mem   *ringbuf.Ring[float64]
	swap  *ringbuf.Ring[float64]
	netRx map[string]*ringbuf.Ring[float64]
	netTx map[string]*ringbuf.Ring[float64]
	disk  map[string]*ringbuf.Ring[float64]
	proc  map[int]*ringbuf.Ring[float64]
}

func newHistories(capacity int) *histories {
	return &histories{
		capacity: capacity,
		cpu:      ringbuf.MustNew[float64](capacity),
		mem:      ringbuf.MustNew[float64](capacity),
		swap:     ringbuf.MustNew[float64](capacity),
		netRx:    make(map[string]*ringbuf.Ring[float64]),
		netTx:    make(map[string]*ringbuf.Ring[float64]),
		disk:     make(map[string]*ringbuf.Ring[float64]),
		proc:     make(map[int]*ringbuf.Ring[float64]),
	}
}

func ringFor[K comparable](m map[K]*ringbuf.Ring[float64], key K, capacity int) *ringbuf.Ring[float64] {
	r, ok := m[key]
	if !ok {
		r = ringbuf.MustNew[float64](capacity)
		m[key] = r
	}
	return r
}

func prune[K comparable](m map[K]*ringbuf.Ring[float64], seen map[K]bool) {
	maps.DeleteFunc(m, func(k K, _ *ringbuf.Ring[float64]) bool { return !seen[k] })
}

// updateHistories pushes one point per series for every collector that
// produced a sample this tick. Rate-based series wait for their collector
// to be primed so the first zero reading never enters a history.
func (a *App) updateHistories() {
	h := a.hist
	if a.fresh("cpu") && a.cpu.Primed() {
		u := a.cpu.Usage()
		h.cpu.Push(u.Total)
		if len(h.cores) != len(u.Cores) {
			h.cores = make([]*ringbuf.Ring[float64], len(u.Cores))
			for i := range h.cores {
				h.cores[i] = ringbuf.MustNew[float64](h.capacity)
			}
		}
		for i, v := range u.Cores {
			h.cores[i].Push(v)
		}
	}
	if a.fresh("memory") {
		b := a.mem.Last().Normalize()
		h.mem.Push(b.UsedPercent)
		h.swap.Push(b.SwapPercent)
	}
	if a.fresh("network") && a.net.Primed() {
		seen := make(map[string]bool)
		for _, st := range a.net.Interfaces() {
			seen[st.Name] = true
			ringFor(h.netRx, st.Name, h.capacity).Push(st.RxRate)
			ringFor(h.netTx, st.Name, h.capacity).Push(st.TxRate)
		}
		prune(h.netRx, seen)
		prune(h.netTx, seen)
	}
	if a.fresh("disk") && a.disk.Primed() {
		seen := make(map[string]bool)
		for _, st := range a.disk.Devices() {
			seen[st.Name] = true
			ringFor(h.disk, st.Name, h.capacity).Push(st.BytesRate())
		}
		prune(h.disk, seen)
	}
	if a.fresh("process") && a.proc.Primed() {
		procs := a.proc.Processes()
		seen := make(map[int]bool, len(procs))
		for pid, p := range procs {
			seen[pid] = true
			ringFor(h.proc, pid, procHistoryLen).Push(p.CPUPercent)
		}
		prune(h.proc, seen)
	}
}

func (a *App) fresh(id string) bool {
	_, failed := a.lastErr[id]
	return !a.disabled[id] && !failed && a.latest[id] != nil
}

// CPUHistory is the aggregate CPU busy fraction, one point per primed tick.
func (a *App) CPUHistory() *ringbuf.Ring[float64] { return a.hist.cpu }

// CoreHistory returns the busy-fraction history of core i, or nil.
func (a *App) CoreHistory(i int) *ringbuf.Ring[float64] {
	if i < 0 || i >= len(a.hist.cores) {
		return nil
	}
	return a.hist.cores[i]
}

// MemoryHistory is used memory in percent of total.
func (a *App) MemoryHistory() *ringbuf.Ring[float64] { return a.hist.mem }

// SwapHistory is used swap in percent of total.
func (a *App) SwapHistory() *ringbuf.Ring[float64] { return a.hist.swap }

// NetHistory returns the rx and tx byte-rate histories of an interface.
func (a *App) NetHistory(iface string) (rx, tx *ringbuf.Ring[float64]) {
	return a.hist.netRx[iface], a.hist.netTx[iface]
}

// DiskHistory returns the combined read+write byte rate of a device.
func (a *App) DiskHistory(dev string) *ringbuf.Ring[float64] { return a.hist.disk[dev] }

// ProcessHistory returns the CPU percent history of pid, or nil.
func (a *App) ProcessHistory(pid int) *ringbuf.Ring[float64] { return a.hist.proc[pid] }

// HistoryKeys lists the series currently held, sorted. It is used by the
// snapshot exporter and the PNG sink.
func (a *App) HistoryKeys() []string {
	keys := []string{"cpu", "memory", "swap"}
	for i := range a.hist.cores {
		keys = append(keys, "cpu.core."+strconv.Itoa(i))
	}
	for _, name := range slices.Sorted(maps.Keys(a.hist.netRx)) {
		keys = append(keys, "net."+name+".rx", "net."+name+".tx")
	}
	for _, name := range slices.Sorted(maps.Keys(a.hist.disk)) {
		keys = append(keys, "disk."+name)
	}
	return keys
}

// Series returns the values of the history named by one of HistoryKeys,
// oldest first.
func (a *App) Series(key string) []float64 {
	var r *ringbuf.Ring[float64]
	switch {
	case key == "cpu":
		r = a.hist.cpu
	case key == "memory":
		r = a.hist.mem
	case key == "swap":
		r = a.hist.swap
	default:
		r = a.keyedSeries(key)
	}
	if r == nil {
		return nil
	}
	return r.Values()
}

func (a *App) keyedSeries(key string) *ringbuf.Ring[float64] {
	if rest, ok := strings.CutPrefix(key, "cpu.core."); ok {
		i, err := strconv.Atoi(rest)
		if err != nil {
			return nil
		}
		return a.CoreHistory(i)
	}
	if rest, ok := strings.CutPrefix(key, "disk."); ok {
		return a.hist.disk[rest]
	}
	if rest, ok := strings.CutPrefix(key, "net."); ok {
		if name, ok := strings.CutSuffix(rest, ".rx"); ok {
			return a.hist.netRx[name]
		}
		if name, ok := strings.CutSuffix(rest, ".tx"); ok {
			return a.hist.netTx[name]
		}
	}
	return nil
}

// frameStats keeps the last K frame durations.
type frameStats struct {
	ring  *ringbuf.Ring[time.Duration]
	count uint64
}

func newFrameStats(k int) *frameStats {
	return &frameStats{ring: ringbuf.MustNew[time.Duration](k)}
}

// FrameStats summarises recent frame times.
type FrameStats struct {
	Count uint64
	Last  time.Duration
	Mean  time.Duration
	Min   time.Duration
	Max   time.Duration
	P95   time.Duration
	// FPS is derived from Mean and is zero when no frame was recorded.
	FPS float64
}

// RecordFrame adds one frame's draw duration.
func (a *App) RecordFrame(d time.Duration) {
	a.frames.ring.Push(d)
	a.frames.count++
}

// FrameStats reports statistics over the last FrameHistoryLen frames.
func (a *App) FrameStats() FrameStats {
	vals := a.frames.ring.Values()
	st := FrameStats{Count: a.frames.count}
	if len(vals) == 0 {
		return st
	}
	st.Last = vals[len(vals)-1]
	var sum time.Duration
	for _, v := range vals {
		sum += v
	}
	st.Mean = sum / time.Duration(len(vals))
	slices.Sort(vals)
	st.Min = vals[0]
	st.Max = vals[len(vals)-1]
	idx := (len(vals)*95+99)/100 - 1
	st.P95 = vals[idx]
	if st.Mean > 0 {
		st.FPS = float64(time.Second) / float64(st.Mean)
	}
	return st
}
