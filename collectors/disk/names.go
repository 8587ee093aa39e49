package disk

import "strings"

// pseudoFS lists filesystem types that never hold user data.
var pseudoFS = map[string]bool{
	"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true,
	"cgroup": true, "cgroup2": true, "pstore": true, "bpf": true,
	"tracefs": true, "debugfs": true, "securityfs": true, "mqueue": true,
	"hugetlbfs": true, "configfs": true, "fusectl": true, "autofs": true,
	"overlay": true, "squashfs": true, "nsfs": true, "ramfs": true,
	"binfmt_misc": true, "rpc_pipefs": true, "efivarfs": true,
	"fuse.gvfsd-fuse": true, "fuse.portal": true, "devfs": true,
	"nullfs": true,
}

// Keep reports whether a mount should be listed. tmpfs is kept only for /tmp.
func Keep(fsType, mountPoint string) bool {
	if fsType == "tmpfs" {
		return mountPoint == "/tmp"
	}
	return !pseudoFS[fsType]
}

// ResolveDevice maps a device name as seen in a mount table ("/dev/sda1",
// "nvme0n1p2") to a key of known, the set of devices with I/O counters.
// An exact match wins. Otherwise a partition suffix is trimmed (trailing
// digits, then a "p" that follows a digit) and the result is used only if
// it is itself a known device. Names such as "dm-0" or "md127" resolve only
// by exact match.
func ResolveDevice(name string, known map[string]bool) (string, bool) {
	name = strings.TrimPrefix(name, "/dev/")
	if known[name] {
		return name, true
	}
	base := partitionBase(name)
	if base != name && known[base] {
		return base, true
	}
	return "", false
}

// partitionBase trims a partition suffix: sda1 -> sda, nvme0n1p2 -> nvme0n1,
// mmcblk0p1 -> mmcblk0. Names without a trailing number are returned as is.
func partitionBase(name string) string {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) || i == 0 {
		return name
	}
	if name[i-1] == 'p' && i >= 2 && name[i-2] >= '0' && name[i-2] <= '9' {
		return name[:i-1]
	}
	return name[:i]
}

// unescapeMount decodes the octal escapes (\040 for space) used in
// /proc/self/mounts.
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) && isOctal(s[i+1:i+4]) {
			v := (s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0')
			b.WriteByte(v)
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}
