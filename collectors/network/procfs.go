package network

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// procSource reads /proc/net/dev.
type procSource struct {
	fs procfs.FS
}

func newProcSource(root string) *procSource {
	return &procSource{fs: procfs.FS{Root: root}}
}

func (p *procSource) available() bool { return p.fs.Exists("net", "dev") }

func (p *procSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}
	err := p.fs.Lines(func(n int, line string) error {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			// Header lines.
			if n <= 2 {
				return nil
			}
			return fmt.Errorf("interface entry: missing ':'")
		}
		f := strings.Fields(rest)
		if len(f) < 16 {
			return fmt.Errorf("interface %s: %w", strings.TrimSpace(name), procfs.ErrShortLine)
		}
		v, err := procfs.Uints(f[:16])
		if err != nil {
			return err
		}
		s.Interfaces = append(s.Interfaces, InterfaceSample{
			Name:      strings.TrimSpace(name),
			RxBytes:   v[0],
			RxPackets: v[1],
			RxErrs:    v[2],
			TxBytes:   v[8],
			TxPackets: v[9],
			TxErrs:    v[10],
		})
		return nil
	}, "net", "dev")
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("net", "dev"), err)
	}
	return s, nil
}
