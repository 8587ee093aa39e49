package battery

import (
	"context"
	"path"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// sysfsSource reads /sys/class/power_supply/*.
type sysfsSource struct {
	fs procfs.FS
}

func newSysfsSource(root string) *sysfsSource {
	return &sysfsSource{fs: procfs.FS{Root: root}}
}

// batteries returns the supply directories whose type is Battery.
func (s *sysfsSource) batteries() []string {
	supplies, _ := s.fs.Glob("class/power_supply/*")
	var out []string
	for _, dir := range supplies {
		if t, err := s.fs.String(dir, "type"); err == nil && t == "Battery" {
			out = append(out, dir)
		}
	}
	return out
}

func (s *sysfsSource) available() bool { return len(s.batteries()) > 0 }

func (s *sysfsSource) read(_ context.Context) (Sample, error) {
	dirs := s.batteries()
	if len(dirs) == 0 {
		return Sample{}, collectors.NewError(collectors.KindUnavailable, collectorID, s.fs.Path("class", "power_supply"), nil)
	}

	out := Sample{Present: true, Time: time.Now()}
	var now, full, rate float64
	var capSum float64
	var capN int
	for _, dir := range dirs {
		if st, err := s.fs.String(dir, "status"); err == nil && out.State == Unknown {
			out.State = ParseState(st)
		}
		n, f, r, ok := s.energy(dir)
		if ok {
			now += n
			full += f
			rate += r
		}
		if c, err := s.fs.Uint(dir, "capacity"); err == nil {
			capSum += float64(c)
			capN++
		}
	}

	switch {
	case full > 0:
		out.Percent = now / full * 100
	case capN > 0:
		out.Percent = capSum / float64(capN)
	}
	if rate > 0 {
		var hours float64
		switch out.State {
		case Discharging:
			hours = now / rate
		case Charging:
			hours = (full - now) / rate
		}
		if hours > 0 {
			out.TimeRemaining = time.Duration(hours * float64(time.Hour))
		}
	}
	return out, nil
}

// energy returns now/full/rate in consistent units, preferring energy_*
// (µWh, µW) and falling back to charge_* (µAh, µA).
func (s *sysfsSource) energy(dir string) (now, full, rate float64, ok bool) {
	for _, names := range [][3]string{
		{"energy_now", "energy_full", "power_now"},
		{"charge_now", "charge_full", "current_now"},
	} {
		n, err1 := s.fs.Uint(path.Join(dir, names[0]))
		f, err2 := s.fs.Uint(path.Join(dir, names[1]))
		if err1 != nil || err2 != nil || f == 0 {
			continue
		}
		r, _ := s.fs.Int(path.Join(dir, names[2]))
		if r < 0 {
			r = -r
		}
		return float64(n), float64(f), float64(r), true
	}
	return 0, 0, 0, false
}
