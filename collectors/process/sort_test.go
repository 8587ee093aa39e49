package process

import "testing"

func sample() map[int]Process {
	return map[int]Process{
		1:  {PID: 1, Name: "init", CPUPercent: 0.5, MemPercent: 1, State: "S", User: "root", Threads: 1},
		20: {PID: 20, Name: "Xorg", CPUPercent: 12, MemPercent: 4, State: "S", User: "root", Threads: 8},
		30: {PID: 30, Name: "firefox", CPUPercent: 12, MemPercent: 20, State: "R", User: "alice", Threads: 90},
		40: {PID: 40, Name: "bash", CPUPercent: 0, MemPercent: 0.2, State: "S", User: "alice", Threads: 1},
	}
}

func pids(ps []Process) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.PID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSort(t *testing.T) {
	tests := []struct {
		col     SortColumn
		reverse bool
		want    []int
	}{
		{SortPID, false, []int{1, 20, 30, 40}},
		{SortPID, true, []int{40, 30, 20, 1}},
		{SortName, false, []int{40, 30, 1, 20}},
		{SortCPU, false, []int{20, 30, 1, 40}},
		{SortCPU, true, []int{40, 1, 20, 30}},
		{SortMem, false, []int{30, 20, 1, 40}},
		{SortState, false, []int{30, 1, 20, 40}},
		{SortUser, false, []int{30, 40, 1, 20}},
		{SortThreads, false, []int{30, 20, 1, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.col.String(), func(t *testing.T) {
			got := pids(Sort(sample(), tt.col, tt.reverse))
			if !equalInts(got, tt.want) {
				t.Errorf("Sort(%v, %v) = %v, want %v", tt.col, tt.reverse, got, tt.want)
			}
		})
	}
}

func TestSortColumnCycle(t *testing.T) {
	col := SortPID
	var names []string
	for range 8 {
		names = append(names, col.String())
		col = col.Next()
	}
	want := []string{"pid", "name", "cpu", "mem", "state", "user", "threads", "pid"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", names, want)
		}
	}
	if len(SortColumns()) != 7 {
		t.Errorf("SortColumns len = %d", len(SortColumns()))
	}
}

func TestParseSortColumn(t *testing.T) {
	for _, name := range []string{"pid", "NAME", "cpu", "mem", "state", "user", "threads"} {
		if _, err := ParseSortColumn(name); err != nil {
			t.Errorf("ParseSortColumn(%q): %v", name, err)
		}
	}
	if _, err := ParseSortColumn("io"); err == nil {
		t.Error("expected error for unknown column")
	}
	if SortColumn(99).String() != "sort(99)" {
		t.Errorf("String = %q", SortColumn(99).String())
	}
}

func TestBuildTree(t *testing.T) {
	procs := map[int]Process{
		1:   {PID: 1, PPID: 0, Name: "init"},
		10:  {PID: 10, PPID: 1, Name: "sshd"},
		11:  {PID: 11, PPID: 10, Name: "bash"},
		5:   {PID: 5, PPID: 1, Name: "journald"},
		2:   {PID: 2, PPID: 0, Name: "kthreadd"},
		99:  {PID: 99, PPID: 500, Name: "orphan"},
		300: {PID: 300, PPID: 301, Name: "cycle-a"},
		301: {PID: 301, PPID: 300, Name: "cycle-b"},
	}
	nodes := BuildTree(procs)
	if len(nodes) != len(procs) {
		t.Fatalf("BuildTree returned %d nodes, want %d", len(nodes), len(procs))
	}
	var got []int
	depth := map[int]int{}
	for _, n := range nodes {
		got = append(got, n.PID)
		depth[n.PID] = n.Depth
	}
	want := []int{1, 5, 10, 11, 2, 99, 300, 301}
	if !equalInts(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if depth[11] != 2 || depth[10] != 1 || depth[99] != 0 || depth[300] != 0 || depth[301] != 1 {
		t.Errorf("depths = %v", depth)
	}
	if !nodes[2].Last || nodes[1].Last {
		t.Errorf("Last flags: journald %v sshd %v", nodes[1].Last, nodes[2].Last)
	}
}
