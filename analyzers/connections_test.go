package analyzers

import (
	"context"
	"errors"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
)

const procNetHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"

func connFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	net := filepath.Join(root, "net")
	os.MkdirAll(net, 0o755)
	files := map[string]string{
		"tcp": procNetHeader +
			"   0: 0100007F:D431 0100007F:01BB 01 00000010:00000020 00:00000000 00000000  1000        0 2222 1 0000000000000000 20 4 30 10 -1\n" +
			"   1: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 1111 1 0000000000000000 100 0 0 10 0\n",
		"tcp6": procNetHeader +
			"   0: 00000000000000000000000001000000:0016 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 4444 1 0000000000000000 100 0 0 10 0\n",
		"udp": procNetHeader +
			"   0: 00000000:0035 00000000:0000 07 00000000:00000000 00:00000000 00000000     0        0 3333 2 0000000000000000 0\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(net, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for pid, links := range map[string]map[string]string{
		"100": {"3": "socket:[2222]", "0": "/dev/null"},
		"200": {"4": "socket:[1111]"},
	} {
		fd := filepath.Join(root, pid, "fd")
		os.MkdirAll(fd, 0o755)
		for name, target := range links {
			if err := os.Symlink(target, filepath.Join(fd, name)); err != nil {
				t.Fatal(err)
			}
		}
	}
	return root
}

func TestConnectionAnalyzerProc(t *testing.T) {
	a := NewConnectionAnalyzer(connFixture(t))
	a.procfs = true
	conns, err := a.Connections(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 4 {
		t.Fatalf("got %d connections: %+v", len(conns), conns)
	}

	tests := []struct {
		proto, local, remote, state, service string
		pid                                  int
		queued                               uint64
	}{
		{"tcp", "127.0.0.1:8080", "0.0.0.0:0", "LISTEN", "http-alt", 200, 0},
		{"tcp", "127.0.0.1:54321", "127.0.0.1:443", "ESTABLISHED", "https", 100, 48},
		{"tcp6", "[::1]:22", "[::]:0", "LISTEN", "ssh", 0, 0},
		{"udp", "0.0.0.0:53", "0.0.0.0:0", "UNCONN", "dns", 0, 0},
	}
	for i, tt := range tests {
		c := conns[i]
		if c.Proto != tt.proto || c.Local != netip.MustParseAddrPort(tt.local) ||
			c.Remote != netip.MustParseAddrPort(tt.remote) || c.State != tt.state ||
			c.PID != tt.pid || c.Queued != tt.queued {
			t.Errorf("conn %d = %+v, want %+v", i, c, tt)
		}
		if got := c.Service(); got != tt.service {
			t.Errorf("conn %d service = %q, want %q", i, got, tt.service)
		}
	}
}

func TestConnectionAnalyzerMissing(t *testing.T) {
	a := NewConnectionAnalyzer(t.TempDir())
	a.procfs = true
	if _, err := a.Connections(context.Background()); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestParseProcNetLineErrors(t *testing.T) {
	for _, line := range []string{
		"0: 0100007F:0050",
		"0: ZZ:0050 00000000:0000 0A 0:0 0 0 0 0 1",
		"0: 0100007F:0050 00000000:0000 0A 00000000:00000000 00:00000000 00000000 0 0 notanint",
	} {
		if _, err := ParseProcNetLine("tcp", line); err == nil {
			t.Errorf("ParseProcNetLine(%q) succeeded", line)
		}
	}
}

func TestServiceName(t *testing.T) {
	if ServiceName(22) != "ssh" || ServiceName(5432) != "postgres" || ServiceName(1) != "" {
		t.Error("unexpected service names")
	}
}
