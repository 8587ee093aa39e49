//go:build linux || darwin

package disk

import "golang.org/x/sys/unix"

type usage struct {
	total, used, free uint64
}

// statfs returns the capacity of the filesystem mounted at path. Free is
// the space available to unprivileged users.
func statfs(path string) (usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return usage{}, err
	}
	bsize := uint64(st.Bsize)
	total := st.Blocks * bsize
	free := st.Bavail * bsize
	used := (st.Blocks - st.Bfree) * bsize
	return usage{total: total, used: used, free: free}, nil
}
