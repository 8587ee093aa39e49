package sensors

import (
	"context"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// hwmonSource reads /sys/class/hwmon/hwmon*/.
type hwmonSource struct {
	fs procfs.FS
}

func newHwmonSource(root string) *hwmonSource {
	return &hwmonSource{fs: procfs.FS{Root: root}}
}

func (h *hwmonSource) available() bool {
	chips, _ := h.fs.Glob("class/hwmon/hwmon*")
	return len(chips) > 0
}

func (h *hwmonSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}
	chips, err := h.fs.Glob("class/hwmon/hwmon*")
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, h.fs.Path("class", "hwmon"), err)
	}
	if len(chips) == 0 {
		return Sample{}, collectors.NewError(collectors.KindUnavailable, collectorID, h.fs.Path("class", "hwmon"), nil)
	}

	names := make(map[string]int)
	for _, dir := range chips {
		chip, err := h.fs.String(dir, "name")
		if err != nil || chip == "" {
			chip = path.Base(dir)
		}
		// Two chips with the same driver name (nvme, two GPUs) get a suffix.
		if n := names[chip]; n > 0 {
			names[chip] = n + 1
			chip = chip + "_" + strconv.Itoa(n)
		} else {
			names[chip] = 1
		}
		s.Readings = append(s.Readings, h.readChip(dir, chip)...)
	}
	return s, nil
}

type channel struct {
	prefix string
	kind   Kind
	scale  float64
}

var channels = []channel{
	{"temp", Temperature, 1000},
	{"fan", Fan, 1},
	{"in", Voltage, 1000},
}

func (h *hwmonSource) readChip(dir, chip string) []Reading {
	var out []Reading
	for _, ch := range channels {
		inputs, _ := h.fs.Glob(path.Join(dir, ch.prefix+"*_input"))
		sort.Slice(inputs, func(i, j int) bool { return channelIndex(inputs[i], ch.prefix) < channelIndex(inputs[j], ch.prefix) })
		for _, in := range inputs {
			base := strings.TrimSuffix(path.Base(in), "_input")
			raw, err := h.fs.Int(in)
			if err != nil {
				continue
			}
			r := Reading{Chip: chip, Label: base, Kind: ch.kind, Value: float64(raw) / ch.scale}
			if label, err := h.fs.String(dir, base+"_label"); err == nil && label != "" {
				r.Label = label
			}
			if v, err := h.fs.Int(dir, base+"_max"); err == nil {
				r.Max = float64(v) / ch.scale
			}
			if v, err := h.fs.Int(dir, base+"_crit"); err == nil {
				r.Crit = float64(v) / ch.scale
			}
			out = append(out, r)
		}
	}
	return out
}

// channelIndex extracts N from "<prefix>N_input" so temp10 sorts after temp2.
func channelIndex(p, prefix string) int {
	base := strings.TrimSuffix(path.Base(p), "_input")
	n, err := strconv.Atoi(strings.TrimPrefix(base, prefix))
	if err != nil {
		return 0
	}
	return n
}
