package battery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/command"
)

func writeSys(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	os.MkdirAll(filepath.Dir(p), 0o755)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSysfsEnergyBased(t *testing.T) {
	root := t.TempDir()
	writeSys(t, root, "class/power_supply/AC/type", "Mains\n")
	writeSys(t, root, "class/power_supply/BAT0/type", "Battery\n")
	writeSys(t, root, "class/power_supply/BAT0/status", "Discharging\n")
	writeSys(t, root, "class/power_supply/BAT0/energy_now", "30000000\n")
	writeSys(t, root, "class/power_supply/BAT0/energy_full", "60000000\n")
	writeSys(t, root, "class/power_supply/BAT0/power_now", "15000000\n")
	writeSys(t, root, "class/power_supply/BAT0/capacity", "49\n")

	c := New(Options{Deterministic: true})
	c.src = newSysfsSource(root)
	if !c.IsAvailable() {
		t.Fatal("IsAvailable = false")
	}
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if v, _ := m.Gauge("battery.percent"); v != 50 {
		t.Errorf("percent = %v, want 50 from energy", v)
	}
	if v, _ := m.Gauge("battery.time.remaining.secs"); v != 7200 {
		t.Errorf("remaining = %v, want 7200", v)
	}
	if c.Last().State != Discharging {
		t.Errorf("state = %v", c.Last().State)
	}
}

func TestSysfsChargeBasedCharging(t *testing.T) {
	root := t.TempDir()
	writeSys(t, root, "class/power_supply/BAT1/type", "Battery\n")
	writeSys(t, root, "class/power_supply/BAT1/status", "Charging\n")
	writeSys(t, root, "class/power_supply/BAT1/charge_now", "1000000\n")
	writeSys(t, root, "class/power_supply/BAT1/charge_full", "4000000\n")
	writeSys(t, root, "class/power_supply/BAT1/current_now", "-1500000\n")

	c := New(Options{Deterministic: true})
	c.src = newSysfsSource(root)
	m, _ := c.Collect(context.Background())
	if v, _ := m.Gauge("battery.percent"); v != 25 {
		t.Errorf("percent = %v", v)
	}
	if v, _ := m.Gauge("battery.time.remaining.secs"); v != 7200 {
		t.Errorf("time to full = %v, want 7200", v)
	}
	if v, _ := m.Gauge("battery.state"); v != float64(Charging) {
		t.Errorf("state = %v", v)
	}
}

func TestSysfsNoBattery(t *testing.T) {
	root := t.TempDir()
	writeSys(t, root, "class/power_supply/AC/type", "Mains\n")
	c := New(Options{Deterministic: true})
	c.src = newSysfsSource(root)
	if c.IsAvailable() {
		t.Error("available with mains only")
	}
	if _, err := c.Collect(context.Background()); !collectors.IsTerminal(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestParsePmset(t *testing.T) {
	out := "Now drawing from 'Battery Power'\n -InternalBattery-0 (id=4653155)\t85%; discharging; 4:20 remaining present: true\n"
	s, ok := parsePmset(out)
	if !ok {
		t.Fatal("parsePmset failed")
	}
	if s.Percent != 85 || s.State != Discharging || s.TimeRemaining != 4*time.Hour+20*time.Minute {
		t.Errorf("sample = %+v", s)
	}

	s, ok = parsePmset(" -InternalBattery-0 (id=1)\t100%; charged; 0:00 remaining present: true\n")
	if !ok || s.State != Full || s.Percent != 100 {
		t.Errorf("charged sample = %+v, %v", s, ok)
	}

	s, ok = parsePmset(" -InternalBattery-0 (id=1)\t40%; charging; (no estimate) present: true\n")
	if !ok || s.State != Charging || s.TimeRemaining != 0 {
		t.Errorf("no-estimate sample = %+v, %v", s, ok)
	}

	if _, ok := parsePmset("Now drawing from 'AC Power'\n"); ok {
		t.Error("parsed battery from desktop output")
	}
}

func TestPmsetErrors(t *testing.T) {
	tests := []struct {
		err  error
		want collectors.ErrorKind
	}{
		{command.ErrNotFound, collectors.KindUnavailable},
		{context.DeadlineExceeded, collectors.KindTimeout},
		{errors.New("exit status 1"), collectors.KindTransient},
	}
	for _, tt := range tests {
		p := &pmsetSource{run: func(context.Context, string, ...string) (string, error) { return "", tt.err }}
		_, err := p.read(context.Background())
		if got := collectors.KindOf(err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestDeterministicZero(t *testing.T) {
	c := New(Options{Deterministic: true})
	m, err := c.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := m.Gauge("battery.percent"); !ok || v != 0 {
		t.Errorf("percent = %v,%v", v, ok)
	}
}
