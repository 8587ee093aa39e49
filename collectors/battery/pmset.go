package battery

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/command"
)

// pmsetSource parses `pmset -g batt` on macOS.
type pmsetSource struct {
	run command.Runner
}

func (p *pmsetSource) available() bool {
	out, err := p.run(context.Background(), "pmset", "-g", "batt")
	return err == nil && strings.Contains(out, "InternalBattery")
}

func (p *pmsetSource) read(ctx context.Context) (Sample, error) {
	out, err := p.run(ctx, "pmset", "-g", "batt")
	if err != nil {
		kind := collectors.KindTransient
		switch {
		case errors.Is(err, command.ErrNotFound):
			kind = collectors.KindUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			kind = collectors.KindTimeout
		}
		return Sample{}, collectors.NewError(kind, collectorID, "pmset", err)
	}
	s, ok := parsePmset(out)
	if !ok {
		return Sample{}, collectors.NewError(collectors.KindUnavailable, collectorID, "pmset", nil)
	}
	s.Time = time.Now()
	return s, nil
}

var pmsetLine = regexp.MustCompile(`(\d+)%;\s*([^;]+);\s*(?:(\d+):(\d+) remaining)?`)

// parsePmset extracts the first InternalBattery line, e.g.
//
//	-InternalBattery-0 (id=4653155)	85%; discharging; 4:20 remaining present: true
func parsePmset(out string) (Sample, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "InternalBattery") {
			continue
		}
		m := pmsetLine.FindStringSubmatch(line)
		if m == nil {
			return Sample{}, false
		}
		s := Sample{Present: true}
		s.Percent, _ = strconv.ParseFloat(m[1], 64)
		s.State = ParseState(strings.TrimSpace(m[2]))
		if m[3] != "" {
			h, _ := strconv.Atoi(m[3])
			mi, _ := strconv.Atoi(m[4])
			s.TimeRemaining = time.Duration(h)*time.Hour + time.Duration(mi)*time.Minute
		}
		return s, true
	}
	return Sample{}, false
}
