package analyzers

import (
	"gitlab.com/tinyland/lab/ttop/collectors/sensors"
)

// SensorStatus grades one temperature reading.
type SensorStatus int

const (
	SensorNormal SensorStatus = iota
	SensorWarm
	SensorHot
	SensorCritical
)

func (s SensorStatus) String() string {
	switch s {
	case SensorWarm:
		return "warm"
	case SensorHot:
		return "hot"
	case SensorCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Fallback limits in °C when a chip reports neither max nor crit.
const (
	defaultMaxCelsius  = 85
	defaultCritCelsius = 100
)

// SensorHealth is the status of one reading.
type SensorHealth struct {
	Reading sensors.Reading
	Status  SensorStatus
	// Headroom is degrees below the critical limit.
	Headroom float64
}

// SensorReport is the per-reading status plus an overall score.
type SensorReport struct {
	Readings []SensorHealth
	// Score is 100 when every sensor is normal and falls toward 0 as
	// readings approach their critical limits.
	Score int
	Worst SensorStatus
}

// limits returns the max and crit thresholds for a temperature reading.
func limits(r sensors.Reading) (hi, crit float64) {
	hi, crit = r.Max, r.Crit
	switch {
	case hi <= 0 && crit <= 0:
		hi, crit = defaultMaxCelsius, defaultCritCelsius
	case crit <= 0:
		crit = hi + 15
	case hi <= 0 || hi > crit:
		hi = crit - 15
	}
	return hi, crit
}

// ClassifySensor grades a temperature against its limits. Warm starts 10 °C
// below max, Hot at max, Critical at crit. Fans and voltages are Normal.
func ClassifySensor(r sensors.Reading) SensorStatus {
	if r.Kind != sensors.Temperature {
		return SensorNormal
	}
	hi, crit := limits(r)
	switch {
	case r.Value >= crit:
		return SensorCritical
	case r.Value >= hi:
		return SensorHot
	case r.Value >= hi-10:
		return SensorWarm
	default:
		return SensorNormal
	}
}

// AnalyzeSensors grades every reading and computes the overall score from
// the reading closest to its critical limit.
func AnalyzeSensors(readings []sensors.Reading) SensorReport {
	rep := SensorReport{Score: 100}
	worstFrac := 0.0
	for _, r := range readings {
		h := SensorHealth{Reading: r, Status: ClassifySensor(r)}
		if r.Kind == sensors.Temperature {
			_, crit := limits(r)
			h.Headroom = crit - r.Value
			if crit > 0 {
				worstFrac = max(worstFrac, r.Value/crit)
			}
		}
		rep.Worst = max(rep.Worst, h.Status)
		rep.Readings = append(rep.Readings, h)
	}
	// Score stays 100 up to half of critical, then falls linearly to 0.
	if worstFrac > 0.5 {
		rep.Score = int(max(0, min(100, (1-worstFrac)*200)))
	}
	return rep
}
