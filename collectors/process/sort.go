package process

import (
	"fmt"
	"sort"
	"strings"
)

// SortColumn selects the process table ordering.
type SortColumn int

const (
	SortPID SortColumn = iota
	SortName
	SortCPU
	SortMem
	SortState
	SortUser
	SortThreads
	numSortColumns
)

var sortNames = [...]string{"pid", "name", "cpu", "mem", "state", "user", "threads"}

func (s SortColumn) String() string {
	if s < 0 || s >= numSortColumns {
		return fmt.Sprintf("sort(%d)", int(s))
	}
	return sortNames[s]
}

// Next cycles to the following column, wrapping after threads.
func (s SortColumn) Next() SortColumn {
	return (s + 1) % numSortColumns
}

// SortColumns lists every column in cycle order.
func SortColumns() []SortColumn {
	out := make([]SortColumn, numSortColumns)
	for i := range out {
		out[i] = SortColumn(i)
	}
	return out
}

// ParseSortColumn maps a name such as "cpu" to its column.
func ParseSortColumn(name string) (SortColumn, error) {
	for i, n := range sortNames {
		if strings.EqualFold(name, n) {
			return SortColumn(i), nil
		}
	}
	return 0, fmt.Errorf("process: unknown sort column %q (want one of %s)", name, strings.Join(sortNames[:], ", "))
}

// descending reports whether col sorts largest first by default.
func (s SortColumn) descending() bool {
	return s == SortCPU || s == SortMem || s == SortThreads
}

// Sort orders procs by col. Resource columns (cpu, mem, threads) sort
// largest first, the rest ascending; reverse flips that. Ties break on pid so
// the order is deterministic.
func Sort(procs map[int]Process, col SortColumn, reverse bool) []Process {
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		out = append(out, p)
	}
	desc := col.descending() != reverse
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		c := compare(a, b, col)
		if c == 0 {
			return a.PID < b.PID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compare(a, b Process, col SortColumn) int {
	switch col {
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortCPU:
		return cmpFloat(a.CPUPercent, b.CPUPercent)
	case SortMem:
		return cmpFloat(a.MemPercent, b.MemPercent)
	case SortState:
		return strings.Compare(a.State, b.State)
	case SortUser:
		return strings.Compare(a.User, b.User)
	case SortThreads:
		return a.Threads - b.Threads
	default:
		return a.PID - b.PID
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
