package registry

import (
	"testing"

	"github.com/pranshu258/linebalancer/internal/contracts"
)

func TestAddBackendDeduplicates(t *testing.T) {
	r := New()
	if !r.AddBackend("10.0.0.1", 9000) {
		t.Fatalf("first AddBackend should report new=true")
	}
	if r.AddBackend("10.0.0.1", 9000) {
		t.Fatalf("second AddBackend for same (addr, port) should report new=false")
	}
	snap := r.Snapshot()
	if len(snap.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap.Entries))
	}
}

func TestRejoinPreservesState(t *testing.T) {
	r := New()
	r.AddBackend("10.0.0.1", 9000)
	b := contracts.Backend{Address: "10.0.0.1", Port: 9000}
	r.SetWeight(b, 5)
	r.Drain(b)
	r.SetRTT(b, 42)
	r.SetReport(b, []contracts.LiveClient{{Name: "x", IP: "1.1.1.1"}})

	r.AddBackend("10.0.0.1", 9000) // re-join

	snap := r.Snapshot()
	e := snap.Entries[0]
	if e.Weight != 5 || !e.Drained || !e.HasRTT || e.RTTMs != 42 || len(e.LiveClients) != 1 {
		t.Fatalf("re-join mutated existing state: %+v", e)
	}
}

func TestSetWeightClampsToOne(t *testing.T) {
	r := New()
	r.AddBackend("a", 1)
	b := contracts.Backend{Address: "a", Port: 1}
	r.SetWeight(b, 0)
	if snap := r.Snapshot(); snap.Entries[0].Weight != 1 {
		t.Fatalf("expected weight clamped to 1, got %d", snap.Entries[0].Weight)
	}
	r.SetWeight(b, -5)
	if snap := r.Snapshot(); snap.Entries[0].Weight != 1 {
		t.Fatalf("expected weight clamped to 1, got %d", snap.Entries[0].Weight)
	}
}

func TestWeightedScheduleMultiplicity(t *testing.T) {
	r := New()
	r.AddBackend("a", 1)
	r.AddBackend("b", 2)
	r.SetWeight(contracts.Backend{Address: "a", Port: 1}, 3)

	snap := r.Snapshot()
	counts := map[contracts.Backend]int{}
	for _, b := range snap.Schedule {
		counts[b]++
	}
	if counts[contracts.Backend{Address: "a", Port: 1}] != 3 {
		t.Fatalf("expected backend a to appear 3 times, got %d", counts[contracts.Backend{Address: "a", Port: 1}])
	}
	if counts[contracts.Backend{Address: "b", Port: 2}] != 1 {
		t.Fatalf("expected backend b to appear 1 time, got %d", counts[contracts.Backend{Address: "b", Port: 2}])
	}
}

func TestRemoveDropsFromSchedule(t *testing.T) {
	r := New()
	r.AddBackend("a", 1)
	r.AddBackend("b", 2)
	if err := r.Remove(contracts.Backend{Address: "a", Port: 1}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	snap := r.Snapshot()
	for _, b := range snap.Schedule {
		if b == (contracts.Backend{Address: "a", Port: 1}) {
			t.Fatalf("removed backend still present in schedule")
		}
	}
}

func TestDrainUndrainRoundTrip(t *testing.T) {
	r := New()
	r.AddBackend("a", 1)
	b := contracts.Backend{Address: "a", Port: 1}
	r.Drain(b)
	r.Undrain(b)
	snap := r.Snapshot()
	if snap.Entries[0].Drained {
		t.Fatalf("expected drained=false after drain+undrain round trip")
	}
}

func TestReportReplacesWholesale(t *testing.T) {
	r := New()
	r.AddBackend("a", 1)
	b := contracts.Backend{Address: "a", Port: 1}
	r.SetReport(b, []contracts.LiveClient{{Name: "one", IP: "1.1.1.1"}})
	r.SetReport(b, []contracts.LiveClient{{Name: "two", IP: "2.2.2.2"}})

	snap := r.Snapshot()
	live := snap.Entries[0].LiveClients
	if len(live) != 1 || live[0].Name != "two" {
		t.Fatalf("expected second report to fully replace first, got %+v", live)
	}
}

func TestBanIndependentSets(t *testing.T) {
	r := New()
	r.BanName("eve")
	if r.IsBanned("1.2.3.4", "bob") {
		t.Fatalf("unrelated ip/name should not be banned")
	}
	if !r.IsBanned("1.2.3.4", "eve") {
		t.Fatalf("expected ban by name to deny regardless of ip")
	}
	r.UnbanName("eve")
	if r.IsBanned("1.2.3.4", "eve") {
		t.Fatalf("expected unban to lift the ban")
	}
}

func TestSetPingIntervalClamp(t *testing.T) {
	r := New()
	applied := r.SetPingInterval(50)
	if applied != 200 {
		t.Fatalf("expected clamp to 200ms, got %d", applied)
	}
}

func TestUnknownBackendMutationsError(t *testing.T) {
	r := New()
	b := contracts.Backend{Address: "ghost", Port: 1}
	if err := r.SetWeight(b, 2); err != ErrUnknownBackend {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if err := r.Drain(b); err != ErrUnknownBackend {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	if err := r.SetReport(b, nil); err != ErrUnknownBackend {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestNextCursorMonotonic(t *testing.T) {
	r := New()
	a := r.NextCursor()
	b := r.NextCursor()
	if b != a+1 {
		t.Fatalf("expected monotonic cursor, got %d then %d", a, b)
	}
}
