package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ttop/collectors"
	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// maxCmdline bounds how much of /proc/<pid>/cmdline is kept.
const maxCmdline = 4096

// procSource walks /proc/<pid>.
type procSource struct {
	fs       procfs.FS
	pageSize uint64
}

func newProcSource(root string) *procSource {
	return &procSource{fs: procfs.FS{Root: root}, pageSize: uint64(os.Getpagesize())}
}

func (p *procSource) available() bool { return p.fs.Exists("stat") }

func (p *procSource) read(_ context.Context) (Sample, error) {
	s := Sample{Time: time.Now()}

	err := p.fs.Lines(func(_ int, line string) error {
		f := strings.Fields(line)
		if len(f) == 0 || !strings.HasPrefix(f[0], "cpu") {
			return nil
		}
		if f[0] != "cpu" {
			s.Cores++
			return nil
		}
		v, err := procfs.Uints(f[1:])
		if err != nil {
			return err
		}
		// Guest time is already counted in user and nice.
		for i, x := range v {
			if i < 8 {
				s.TotalTicks += x
			}
		}
		return nil
	}, "stat")
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Path("stat"), err)
	}
	_ = p.fs.Lines(func(_ int, line string) error {
		if key, v, err := procfs.KV(line); err == nil && key == "MemTotal" {
			s.MemTotal = v
		}
		return nil
	}, "meminfo")

	entries, err := os.ReadDir(p.fs.Root)
	if err != nil {
		return Sample{}, collectors.Classify(collectorID, p.fs.Root, err)
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		// Processes exit between ReadDir and the reads below.
		if r, err := p.readPID(pid); err == nil {
			s.Procs = append(s.Procs, r)
		}
	}
	return s, nil
}

// readPID reads stat, status, cmdline and io for one pid. io is readable
// only for the caller's own processes without CAP_SYS_PTRACE; an
// unreadable io file leaves HasIO false.
func (p *procSource) readPID(pid int) (RawProcess, error) {
	dir := strconv.Itoa(pid)
	stat, err := p.fs.String(dir, "stat")
	if err != nil {
		return RawProcess{}, err
	}
	r, err := parseStat(stat, p.pageSize)
	if err != nil {
		return RawProcess{}, err
	}
	r.PID = pid

	_ = p.fs.Lines(func(_ int, line string) error {
		if rest, ok := strings.CutPrefix(line, "Uid:"); ok {
			if f := strings.Fields(rest); len(f) > 0 {
				r.UID = f[0]
			}
		}
		return nil
	}, dir, "status")

	if raw, err := os.ReadFile(p.fs.Path(dir, "cmdline")); err == nil {
		if len(raw) > maxCmdline {
			raw = raw[:maxCmdline]
		}
		r.Cmdline = string(bytes.TrimSpace(bytes.ReplaceAll(bytes.TrimRight(raw, "\x00"), []byte{0}, []byte{' '})))
	}

	var seen int
	if err := p.fs.Lines(func(_ int, line string) error {
		key, v, err := procfs.KV(line)
		if err != nil {
			return nil
		}
		switch key {
		case "read_bytes":
			r.ReadBytes = v
			seen++
		case "write_bytes":
			r.WriteBytes = v
			seen++
		}
		return nil
	}, dir, "io"); err == nil && seen == 2 {
		r.HasIO = true
	}
	return r, nil
}

var errBadStat = errors.New("malformed stat")

// parseStat parses /proc/<pid>/stat. The command name is enclosed in
// parentheses and may itself contain spaces or parentheses, so the fields
// after it are located from the last ')'.
func parseStat(line string, pageSize uint64) (RawProcess, error) {
	open := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open < 0 || end < open {
		return RawProcess{}, errBadStat
	}
	r := RawProcess{Name: line[open+1 : end]}
	f := strings.Fields(line[end+1:])
	// f[0] is state (field 3); rss is field 24, so f[21].
	if len(f) < 22 {
		return RawProcess{}, fmt.Errorf("%w: %d fields", errBadStat, len(f))
	}
	r.State = f[0]
	ppid, err := strconv.Atoi(f[1])
	if err != nil {
		return RawProcess{}, err
	}
	r.PPID = ppid
	utime, err1 := strconv.ParseUint(f[11], 10, 64)
	stime, err2 := strconv.ParseUint(f[12], 10, 64)
	threads, err3 := strconv.Atoi(f[17])
	vsize, err4 := strconv.ParseUint(f[20], 10, 64)
	rss, err5 := strconv.ParseInt(f[21], 10, 64)
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return RawProcess{}, err
	}
	r.Ticks = utime + stime
	r.Threads = threads
	r.VSZ = vsize
	if rss > 0 {
		r.RSS = uint64(rss) * pageSize
	}
	return r, nil
}
