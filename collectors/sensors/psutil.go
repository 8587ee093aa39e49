package sensors

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"gitlab.com/tinyland/lab/ttop/collectors"
)

// psutilSource reads temperatures through gopsutil. Fans and voltages are
// not exposed there.
type psutilSource struct{}

func (psutilSource) available() bool {
	temps, err := host.SensorsTemperatures()
	return err == nil && len(temps) > 0
}

func (psutilSource) read(ctx context.Context) (Sample, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return Sample{}, collectors.Classify(collectorID, "host.SensorsTemperatures", err)
	}
	s := Sample{Time: time.Now()}
	for _, t := range temps {
		s.Readings = append(s.Readings, Reading{
			Chip: "host", Label: t.SensorKey, Kind: Temperature,
			Value: t.Temperature, Max: t.High, Crit: t.Critical,
		})
	}
	return s, nil
}
