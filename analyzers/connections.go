package analyzers

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"

	"gitlab.com/tinyland/lab/ttop/internal/procfs"
)

// Connection is one TCP or UDP socket.
type Connection struct {
	Proto  string
	Local  netip.AddrPort
	Remote netip.AddrPort
	State  string
	// PID is 0 when the owner could not be resolved.
	PID   int
	Inode uint64
	// Queued is bytes in the send plus receive queues.
	Queued uint64
}

// Service returns the well-known service name for the connection: the local
// port for listeners, otherwise the remote port.
func (c Connection) Service() string {
	if c.State == "LISTEN" || !c.Remote.IsValid() || c.Remote.Port() == 0 {
		return ServiceName(c.Local.Port())
	}
	if s := ServiceName(c.Remote.Port()); s != "" {
		return s
	}
	return ServiceName(c.Local.Port())
}

var wellKnownPorts = map[uint16]string{
	20: "ftp-data", 21: "ftp", 22: "ssh", 23: "telnet", 25: "smtp",
	53: "dns", 67: "dhcp", 68: "dhcp", 80: "http", 110: "pop3",
	123: "ntp", 143: "imap", 161: "snmp", 389: "ldap", 443: "https",
	465: "smtps", 514: "syslog", 587: "submission", 631: "ipp", 853: "dns-tls",
	993: "imaps", 995: "pop3s", 1883: "mqtt", 2049: "nfs", 3306: "mysql",
	3389: "rdp", 5353: "mdns", 5432: "postgres", 5672: "amqp", 6379: "redis",
	6443: "k8s-api", 8080: "http-alt", 8443: "https-alt", 9090: "prometheus",
	9200: "elasticsearch", 11211: "memcached", 27017: "mongodb",
}

// ServiceName returns the well-known name for port, or "".
func ServiceName(port uint16) string { return wellKnownPorts[port] }

var tcpStates = map[string]string{
	"01": "ESTABLISHED", "02": "SYN_SENT", "03": "SYN_RECV", "04": "FIN_WAIT1",
	"05": "FIN_WAIT2", "06": "TIME_WAIT", "07": "CLOSE", "08": "CLOSE_WAIT",
	"09": "LAST_ACK", "0A": "LISTEN", "0B": "CLOSING",
}

// ConnectionAnalyzer enumerates sockets and joins them to pids by inode.
type ConnectionAnalyzer struct {
	fs     procfs.FS
	procfs bool
}

// NewConnectionAnalyzer reads /proc/net below procRoot on Linux and uses
// gopsutil elsewhere.
func NewConnectionAnalyzer(procRoot string) *ConnectionAnalyzer {
	if procRoot == "" {
		procRoot = "/proc"
	}
	return &ConnectionAnalyzer{fs: procfs.FS{Root: procRoot}, procfs: runtime.GOOS == "linux"}
}

// Connections returns all sockets sorted by proto, local address and port.
func (a *ConnectionAnalyzer) Connections(ctx context.Context) ([]Connection, error) {
	var conns []Connection
	var err error
	if a.procfs {
		conns, err = a.readProc()
	} else {
		conns, err = readPsutilConnections(ctx)
	}
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(conns, func(x, y Connection) int {
		if c := strings.Compare(x.Proto, y.Proto); c != 0 {
			return c
		}
		if c := x.Local.Compare(y.Local); c != 0 {
			return c
		}
		return x.Remote.Compare(y.Remote)
	})
	return conns, nil
}

func (a *ConnectionAnalyzer) readProc() ([]Connection, error) {
	var conns []Connection
	found := false
	for _, proto := range []string{"tcp", "tcp6", "udp", "udp6"} {
		err := a.fs.Lines(func(n int, line string) error {
			if n == 1 {
				return nil
			}
			c, err := ParseProcNetLine(proto, line)
			if err != nil {
				return err
			}
			conns = append(conns, c)
			return nil
		}, "net", proto)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("analyzers: connections: %w", os.ErrNotExist)
	}
	owners := a.inodeOwners()
	for i := range conns {
		conns[i].PID = owners[conns[i].Inode]
	}
	return conns, nil
}

// inodeOwners maps socket inodes to pids by reading /proc/<pid>/fd links.
// Processes whose fds are unreadable are skipped.
func (a *ConnectionAnalyzer) inodeOwners() map[uint64]int {
	owners := make(map[uint64]int)
	entries, err := os.ReadDir(a.fs.Root)
	if err != nil {
		return owners
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		fds, err := os.ReadDir(a.fs.Path(e.Name(), "fd"))
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(a.fs.Path(e.Name(), "fd", fd.Name()))
			if err != nil {
				continue
			}
			inode, ok := socketInode(link)
			if !ok {
				continue
			}
			if _, seen := owners[inode]; !seen {
				owners[inode] = pid
			}
		}
	}
	return owners
}

func socketInode(link string) (uint64, bool) {
	rest, ok := strings.CutPrefix(link, "socket:[")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, "]")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(rest, 10, 64)
	return v, err == nil
}

// ParseProcNetLine parses one data row of /proc/net/{tcp,tcp6,udp,udp6}.
func ParseProcNetLine(proto, line string) (Connection, error) {
	f := strings.Fields(line)
	if len(f) < 10 {
		return Connection{}, procfs.ErrShortLine
	}
	local, err := parseHexAddr(f[1])
	if err != nil {
		return Connection{}, fmt.Errorf("local address: %w", err)
	}
	remote, err := parseHexAddr(f[2])
	if err != nil {
		return Connection{}, fmt.Errorf("remote address: %w", err)
	}
	c := Connection{Proto: proto, Local: local, Remote: remote}
	if strings.HasPrefix(proto, "tcp") {
		c.State = tcpStates[strings.ToUpper(f[3])]
	} else if f[3] == "07" {
		c.State = "UNCONN"
	} else {
		c.State = "ESTABLISHED"
	}
	if tx, rx, ok := strings.Cut(f[4], ":"); ok {
		t, _ := strconv.ParseUint(tx, 16, 64)
		r, _ := strconv.ParseUint(rx, 16, 64)
		c.Queued = t + r
	}
	c.Inode, err = strconv.ParseUint(f[9], 10, 64)
	if err != nil {
		return Connection{}, fmt.Errorf("inode: %w", err)
	}
	return c, nil
}

// parseHexAddr decodes "0100007F:0050" (IPv4) or the 32-hex-digit IPv6 form.
// The address is stored as host-endian 32-bit words.
func parseHexAddr(s string) (netip.AddrPort, error) {
	addrHex, portHex, ok := strings.Cut(s, ":")
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("malformed %q", s)
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return netip.AddrPort{}, err
	}
	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return netip.AddrPort{}, err
	}
	var addr netip.Addr
	switch len(raw) {
	case 4:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], binary.LittleEndian.Uint32(raw))
		addr = netip.AddrFrom4(b)
	case 16:
		var b [16]byte
		for i := 0; i < 16; i += 4 {
			binary.BigEndian.PutUint32(b[i:], binary.LittleEndian.Uint32(raw[i:]))
		}
		addr = netip.AddrFrom16(b).Unmap()
	default:
		return netip.AddrPort{}, fmt.Errorf("address length %d", len(raw))
	}
	return netip.AddrPortFrom(addr, uint16(port)), nil
}

func readPsutilConnections(ctx context.Context) ([]Connection, error) {
	stats, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return nil, fmt.Errorf("analyzers: connections: %w", err)
	}
	conns := make([]Connection, 0, len(stats))
	for _, s := range stats {
		proto := "tcp"
		if s.Type == 2 {
			proto = "udp"
		}
		local, _ := netip.ParseAddr(s.Laddr.IP)
		remote, _ := netip.ParseAddr(s.Raddr.IP)
		if local.Is6() && !local.Is4In6() {
			proto += "6"
		}
		conns = append(conns, Connection{
			Proto:  proto,
			Local:  netip.AddrPortFrom(local.Unmap(), uint16(s.Laddr.Port)),
			Remote: netip.AddrPortFrom(remote.Unmap(), uint16(s.Raddr.Port)),
			State:  s.Status,
			PID:    int(s.Pid),
		})
	}
	return conns, nil
}
