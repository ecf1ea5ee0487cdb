// Package registry owns the balancer's authoritative in-memory state:
// the backend set, their weights and drain flags, the latest live-client
// reports, RTT readings, ban lists, and the global policy knobs. All
// mutations are serialized by a single lock shared with the derived
// weighted schedule.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pranshu258/linebalancer/internal/contracts"
)

// ErrUnknownBackend is returned by mutations that target a backend the
// registry has never seen via !join.
var ErrUnknownBackend = errors.New("registry: unknown backend")

type entry struct {
	backend     contracts.Backend
	weight      int
	drained     bool
	hasRTT      bool
	rttMs       int
	hasReport   bool
	liveClients []contracts.LiveClient
}

// EntryView is a read-only, independently-owned copy of one backend's
// registry state, safe to read without holding the registry's lock.
type EntryView struct {
	Backend     contracts.Backend
	Weight      int
	Drained     bool
	RTTMs       int
	HasRTT      bool
	LiveClients []contracts.LiveClient
}

func (e EntryView) LiveCount() int { return len(e.LiveClients) }

// Snapshot is an internally-consistent point-in-time copy of the
// registry, suitable for the scheduler, probe loop, and admin console
// to read without further locking.
type Snapshot struct {
	Entries       []EntryView
	Schedule      []contracts.Backend
	DefaultMode   contracts.Mode
	MaxPerBackend int  // -1 means unlimited
	PingIntervalMs int
}

// Unlimited is the sentinel value for MaxPerBackend meaning "no cap".
const Unlimited = -1

// Registry is the balancer's shared mutable state.
type Registry struct {
	mu sync.RWMutex

	order    []contracts.Backend // registration order, backs the weighted schedule
	entries  map[contracts.Backend]*entry
	schedule []contracts.Backend

	bannedIPs   map[string]struct{}
	bannedNames map[string]struct{}

	defaultMode    contracts.Mode
	maxPerBackend  int // -1 unlimited
	pingIntervalMs int

	cursor atomic.Uint64
}

// New returns a Registry with static default mode, an unlimited
// per-backend cap, and a 1000ms probe interval.
func New() *Registry {
	return &Registry{
		entries:        make(map[contracts.Backend]*entry),
		bannedIPs:      make(map[string]struct{}),
		bannedNames:    make(map[string]struct{}),
		defaultMode:    contracts.ModeStatic,
		maxPerBackend:  Unlimited,
		pingIntervalMs: 1000,
	}
}

// AddBackend registers (address, port) if new. Returns whether a new
// entry was created; re-joining an existing backend preserves its
// weight, drain flag, RTT, and live-client list.
func (r *Registry) AddBackend(addr string, port int) bool {
	b := contracts.Backend{Address: addr, Port: port}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[b]; ok {
		return false
	}
	r.entries[b] = &entry{backend: b, weight: 1}
	r.order = append(r.order, b)
	r.rebuildScheduleLocked()
	return true
}

// Remove drops a backend from the registry. It does not close any open
// connection; the backend simply disappears from future scheduling.
func (r *Registry) Remove(b contracts.Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[b]; !ok {
		return ErrUnknownBackend
	}
	delete(r.entries, b)
	for i, ob := range r.order {
		if ob == b {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.rebuildScheduleLocked()
	return nil
}

// SetWeight sets a backend's RR weight, clamped to a minimum of 1.
func (r *Registry) SetWeight(b contracts.Backend, w int) error {
	if w < 1 {
		w = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[b]
	if !ok {
		return ErrUnknownBackend
	}
	e.weight = w
	r.rebuildScheduleLocked()
	return nil
}

// Drain excludes a backend from future selection without removing it.
func (r *Registry) Drain(b contracts.Backend) error { return r.setDrained(b, true) }

// Undrain re-admits a previously drained backend.
func (r *Registry) Undrain(b contracts.Backend) error { return r.setDrained(b, false) }

func (r *Registry) setDrained(b contracts.Backend, drained bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[b]
	if !ok {
		return ErrUnknownBackend
	}
	e.drained = drained
	return nil
}

// DrainAll drains every currently-registered backend.
func (r *Registry) DrainAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.drained = true
	}
}

// UndrainAll clears the drain flag on every backend.
func (r *Registry) UndrainAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.drained = false
	}
}

// SetReport replaces the live-client list for a backend wholesale. A
// report for a backend the registry has never seen via !join is
// dropped; the caller is told via the returned error.
func (r *Registry) SetReport(b contracts.Backend, clients []contracts.LiveClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[b]
	if !ok {
		return ErrUnknownBackend
	}
	e.liveClients = clients
	e.hasReport = true
	return nil
}

// SetRTT records the latest probe RTT for a backend. A failed probe
// never calls this, so the previous value is preserved by construction.
func (r *Registry) SetRTT(b contracts.Backend, ms int) error {
	if ms < 0 {
		ms = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[b]
	if !ok {
		return ErrUnknownBackend
	}
	e.rttMs = ms
	e.hasRTT = true
	return nil
}

// BanIP / BanName / UnbanIP / UnbanName mutate the two independent ban
// sets.
func (r *Registry) BanIP(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedIPs[ip] = struct{}{}
}

func (r *Registry) UnbanIP(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bannedIPs, ip)
}

func (r *Registry) BanName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bannedNames[name] = struct{}{}
}

func (r *Registry) UnbanName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bannedNames, name)
}

// IsBanned reports whether either the IP or the name is banned.
func (r *Registry) IsBanned(ip, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.bannedIPs[ip]; ok {
		return true
	}
	_, ok := r.bannedNames[name]
	return ok
}

// Bans returns copies of the two ban sets, for admin display.
func (r *Registry) Bans() (ips []string, names []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ip := range r.bannedIPs {
		ips = append(ips, ip)
	}
	for n := range r.bannedNames {
		names = append(names, n)
	}
	return ips, names
}

// SetDefaultMode changes the mode used when a client's handshake omits
// one or sends an invalid token.
func (r *Registry) SetDefaultMode(m contracts.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultMode = m
}

// SetMaxPerBackend sets the live-client cap. Pass registry.Unlimited
// to remove the cap.
func (r *Registry) SetMaxPerBackend(n int) {
	if n < Unlimited {
		n = Unlimited
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxPerBackend = n
}

// SetPingInterval sets the probe period, clamped to a minimum of
// 200ms.
func (r *Registry) SetPingInterval(ms int) int {
	if ms < 200 {
		ms = 200
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pingIntervalMs = ms
	return ms
}

// NextCursor atomically advances and returns the shared RR cursor. The
// caller applies modulo at read time so the counter can wrap freely.
func (r *Registry) NextCursor() uint64 {
	return r.cursor.Add(1) - 1
}

// Snapshot returns an internally-consistent copy of the registry: the
// backend set, weights, drain flags, live counts, and RTTs used by one
// caller all come from the same logical instant.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]EntryView, 0, len(r.order))
	for _, b := range r.order {
		e := r.entries[b]
		view := EntryView{
			Backend: e.backend,
			Weight:  e.weight,
			Drained: e.drained,
			RTTMs:   e.rttMs,
			HasRTT:  e.hasRTT,
		}
		if e.hasReport {
			view.LiveClients = append([]contracts.LiveClient(nil), e.liveClients...)
		}
		entries = append(entries, view)
	}

	return Snapshot{
		Entries:        entries,
		Schedule:       append([]contracts.Backend(nil), r.schedule...),
		DefaultMode:    r.defaultMode,
		MaxPerBackend:  r.maxPerBackend,
		PingIntervalMs: r.pingIntervalMs,
	}
}

// Backends returns the live backend set in registration order, used by
// the probe loop's per-tick fan-out.
func (r *Registry) Backends() []contracts.Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]contracts.Backend(nil), r.order...)
}

// rebuildScheduleLocked recomputes the weighted schedule from the
// current backend set and weights. Callers must hold r.mu for writing.
func (r *Registry) rebuildScheduleLocked() {
	schedule := make([]contracts.Backend, 0, len(r.order))
	for _, b := range r.order {
		e := r.entries[b]
		for i := 0; i < e.weight; i++ {
			schedule = append(schedule, b)
		}
	}
	r.schedule = schedule
}
