package process

import "sort"

// TreeNode is one row of the flattened process tree.
type TreeNode struct {
	Process
	Depth int
	// Last reports whether this node is the last child of its parent, for
	// drawing tree glyphs.
	Last bool
}

// BuildTree flattens procs into depth-first order using the pid to ppid
// relation. Processes whose parent is not in procs are roots. Siblings are
// ordered by pid. Cycles in the parent relation are broken at the first
// revisit.
func BuildTree(procs map[int]Process) []TreeNode {
	children := make(map[int][]int, len(procs))
	var roots []int
	for pid, p := range procs {
		if _, ok := procs[p.PPID]; ok && p.PPID != pid {
			children[p.PPID] = append(children[p.PPID], pid)
		} else {
			roots = append(roots, pid)
		}
	}
	sort.Ints(roots)
	for _, kids := range children {
		sort.Ints(kids)
	}

	out := make([]TreeNode, 0, len(procs))
	visited := make(map[int]bool, len(procs))
	var walk func(pid, depth int, last bool)
	walk = func(pid, depth int, last bool) {
		if visited[pid] {
			return
		}
		visited[pid] = true
		out = append(out, TreeNode{Process: procs[pid], Depth: depth, Last: last})
		kids := children[pid]
		for i, k := range kids {
			walk(k, depth+1, i == len(kids)-1)
		}
	}
	for i, r := range roots {
		walk(r, 0, i == len(roots)-1)
	}
	// Pure cycles have no root; surface them at depth 0.
	if len(out) < len(procs) {
		rest := make([]int, 0, len(procs)-len(out))
		for pid := range procs {
			if !visited[pid] {
				rest = append(rest, pid)
			}
		}
		sort.Ints(rest)
		for _, pid := range rest {
			walk(pid, 0, false)
		}
	}
	return out
}
