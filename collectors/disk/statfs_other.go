//go:build !linux && !darwin

package disk

import "errors"

type usage struct {
	total, used, free uint64
}

func statfs(string) (usage, error) {
	return usage{}, errors.New("disk: statfs not supported on this platform")
}
