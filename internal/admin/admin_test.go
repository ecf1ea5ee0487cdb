package admin

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pranshu258/linebalancer/internal/assignlog"
	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/registry"
)

func newTestConsole() (*Console, *registry.Registry, *assignlog.Log, *bytes.Buffer) {
	reg := registry.New()
	al := assignlog.New()
	out := &bytes.Buffer{}
	c := New(context.Background(), reg, al, nil, nil, out)
	return c, reg, al, out
}

func TestServersEmpty(t *testing.T) {
	c, _, _, out := newTestConsole()
	c.Run(strings.NewReader("servers\n"))
	if !strings.Contains(out.String(), "no backends registered") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestDrainUndrainCommands(t *testing.T) {
	c, reg, _, _ := newTestConsole()
	reg.AddBackend("a", 1)
	c.Run(strings.NewReader("drain a:1\nundrain a:1\n"))
	if reg.Snapshot().Entries[0].Drained {
		t.Fatalf("expected backend undrained after drain+undrain")
	}
}

func TestSetWeightClampsToOne(t *testing.T) {
	c, reg, _, out := newTestConsole()
	reg.AddBackend("a", 1)
	c.Run(strings.NewReader("setweight a:1 0\n"))
	if reg.Snapshot().Entries[0].Weight != 1 {
		t.Fatalf("expected weight clamped to 1")
	}
	if !strings.Contains(out.String(), "weight(a:1) = 1") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestSetPingClampsTo200(t *testing.T) {
	c, reg, _, out := newTestConsole()
	c.Run(strings.NewReader("set ping 50\n"))
	if reg.Snapshot().PingIntervalMs != 200 {
		t.Fatalf("expected ping interval clamped to 200, got %d", reg.Snapshot().PingIntervalMs)
	}
	if !strings.Contains(out.String(), "ping interval = 200ms") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestBanUnbanRoundTrip(t *testing.T) {
	c, reg, _, _ := newTestConsole()
	c.Run(strings.NewReader("ban name eve\n"))
	if !reg.IsBanned("1.2.3.4", "eve") {
		t.Fatalf("expected eve banned")
	}
	c.Run(strings.NewReader("unban name eve\n"))
	if reg.IsBanned("1.2.3.4", "eve") {
		t.Fatalf("expected eve unbanned")
	}
}

func TestRemoveUnknownBackendReportsError(t *testing.T) {
	c, _, _, out := newTestConsole()
	c.Run(strings.NewReader("remove a:1\n"))
	if !strings.Contains(out.String(), "unknown backend") {
		t.Fatalf("expected unknown-backend error in output, got %q", out.String())
	}
}

func TestUnknownCommandHint(t *testing.T) {
	c, _, _, out := newTestConsole()
	c.Run(strings.NewReader("frobnicate\n"))
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("expected unknown-command hint, got %q", out.String())
	}
}

func TestClearEmptiesAssignmentLog(t *testing.T) {
	c, _, al, _ := newTestConsole()
	al.Append(contracts.ClientRecord{ClientName: "x"})
	c.Run(strings.NewReader("clear\n"))
	if len(al.Recent()) != 0 {
		t.Fatalf("expected empty log after clear")
	}
}
