package backendchannel

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/pranshu258/linebalancer/internal/registry"
)

func startChannel(t *testing.T, reg *registry.Registry) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	ch := New(reg, nil)
	go ch.Serve(ln)
	return ln.Addr()
}

func dialAndSend(t *testing.T, addr net.Addr, line string) string {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	conn.Write([]byte(line))
	reply, _ := bufio.NewReader(conn).ReadString('\n')
	return reply
}

func TestJoinRegistersBackendByPeerIP(t *testing.T) {
	reg := registry.New()
	addr := startChannel(t, reg)

	reply := dialAndSend(t, addr, "!join foo bar 7777\n")
	if reply != "!ack\n" {
		t.Fatalf("expected !ack, got %q", reply)
	}

	snap := reg.Snapshot()
	if len(snap.Entries) != 1 {
		t.Fatalf("expected 1 registered backend, got %d", len(snap.Entries))
	}
	if snap.Entries[0].Backend.Port != 7777 {
		t.Fatalf("expected port 7777, got %d", snap.Entries[0].Backend.Port)
	}
	if snap.Entries[0].Backend.Address != "127.0.0.1" {
		t.Fatalf("expected peer address 127.0.0.1, got %q", snap.Entries[0].Backend.Address)
	}
}

func TestDuplicateJoinDoesNotDuplicate(t *testing.T) {
	reg := registry.New()
	addr := startChannel(t, reg)

	dialAndSend(t, addr, "!join 7777\n")
	dialAndSend(t, addr, "!join 7777\n")

	if len(reg.Snapshot().Entries) != 1 {
		t.Fatalf("expected exactly 1 entry after duplicate joins, got %d", len(reg.Snapshot().Entries))
	}
}

func TestUnknownPrefixRepliesErr(t *testing.T) {
	reg := registry.New()
	addr := startChannel(t, reg)

	reply := dialAndSend(t, addr, "!bogus\n")
	if reply != "!err\n" {
		t.Fatalf("expected !err, got %q", reply)
	}
}

func TestReportReplacesLiveClients(t *testing.T) {
	reg := registry.New()
	addr := startChannel(t, reg)

	dialAndSend(t, addr, "!join 7777\n")
	conn, _ := net.Dial("tcp", addr.String())
	conn.Write([]byte("!report 7777 clients 2 alice@1.1.1.1 bob@2.2.2.2\n"))
	conn.Close()

	// Give the handler goroutine a moment to apply the report.
	deadline := time.Now().Add(time.Second)
	var entries []registry.EntryView
	for time.Now().Before(deadline) {
		entries = reg.Snapshot().Entries
		if len(entries) == 1 && len(entries[0].LiveClients) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) != 1 || len(entries[0].LiveClients) != 2 {
		t.Fatalf("expected 2 live clients recorded, got %+v", entries)
	}
	if entries[0].LiveClients[0].Name != "alice" || entries[0].LiveClients[0].IP != "1.1.1.1" {
		t.Fatalf("unexpected first live client: %+v", entries[0].LiveClients[0])
	}
}

func TestSplitNameIPMissingAt(t *testing.T) {
	name, ip := splitNameIP("solo")
	if name != "solo" || ip != "unknown" {
		t.Fatalf("expected solo/unknown, got %s/%s", name, ip)
	}
}
