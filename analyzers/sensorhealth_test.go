package analyzers

import (
	"testing"

	"gitlab.com/tinyland/lab/ttop/collectors/sensors"
)

func temp(v, hi, crit float64) sensors.Reading {
	return sensors.Reading{Chip: "coretemp", Label: "Core 0", Kind: sensors.Temperature, Value: v, Max: hi, Crit: crit}
}

func TestClassifySensor(t *testing.T) {
	tests := []struct {
		name string
		r    sensors.Reading
		want SensorStatus
	}{
		{"cool", temp(40, 80, 100), SensorNormal},
		{"warm", temp(72, 80, 100), SensorWarm},
		{"hot", temp(85, 80, 100), SensorHot},
		{"critical", temp(100, 80, 100), SensorCritical},
		{"defaults", temp(90, 0, 0), SensorHot},
		{"crit only", temp(80, 0, 90), SensorHot},
		{"max only", temp(96, 80, 0), SensorCritical},
		{"fan ignored", sensors.Reading{Kind: sensors.Fan, Value: 99999}, SensorNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySensor(tt.r); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzeSensors(t *testing.T) {
	rep := AnalyzeSensors([]sensors.Reading{temp(30, 80, 100), {Kind: sensors.Voltage, Value: 1.2}})
	if rep.Score != 100 || rep.Worst != SensorNormal || len(rep.Readings) != 2 {
		t.Errorf("cool report = %+v", rep)
	}
	if rep.Readings[0].Headroom != 70 {
		t.Errorf("headroom = %v", rep.Readings[0].Headroom)
	}

	rep = AnalyzeSensors([]sensors.Reading{temp(30, 80, 100), temp(75, 80, 100)})
	if rep.Score != 50 || rep.Worst != SensorWarm {
		t.Errorf("warm report = %+v", rep)
	}

	rep = AnalyzeSensors([]sensors.Reading{temp(110, 80, 100)})
	if rep.Score != 0 || rep.Worst != SensorCritical {
		t.Errorf("critical report = %+v", rep)
	}

	if rep := AnalyzeSensors(nil); rep.Score != 100 {
		t.Errorf("empty score = %d", rep.Score)
	}
}
