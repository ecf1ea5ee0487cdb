// Package schedule implements the two backend-selection policies:
// weighted round-robin ("static") and minimum-RTT ("dynamic"). Both
// operate over the registry's drain/cap-aware candidate set and its
// atomically-advanced shared cursor.
package schedule

import (
	"github.com/pranshu258/linebalancer/internal/contracts"
	"github.com/pranshu258/linebalancer/internal/registry"
)

// CursorSource supplies the shared, atomically-advancing RR cursor.
// registry.Registry satisfies this.
type CursorSource interface {
	NextCursor() uint64
}

// Select runs the scheduler for one client handshake: it builds the
// candidate set from snap (non-drained, under the per-backend cap),
// then applies the requested mode. The second return value is false
// when no backend is schedulable.
func Select(snap registry.Snapshot, mode contracts.Mode, cursor CursorSource) (contracts.Backend, bool) {
	candidates := candidateSet(snap)
	if len(candidates) == 0 {
		return contracts.Backend{}, false
	}

	switch mode {
	case contracts.ModeDynamic:
		if b, ok := minRTT(candidates); ok {
			return b, true
		}
		// No candidate has a known RTT: fall through to static selection
		// over the same candidate set.
		return staticSelect(snap, candidates, cursor)
	default:
		return staticSelect(snap, candidates, cursor)
	}
}

// candidateSet returns entries that are not drained and whose live
// count is strictly below the cap (if any).
func candidateSet(snap registry.Snapshot) []registry.EntryView {
	out := make([]registry.EntryView, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if e.Drained {
			continue
		}
		if snap.MaxPerBackend != registry.Unlimited && e.LiveCount() >= snap.MaxPerBackend {
			continue
		}
		out = append(out, e)
	}
	return out
}

func isCandidate(candidates []registry.EntryView, b contracts.Backend) bool {
	for _, c := range candidates {
		if c.Backend == b {
			return true
		}
	}
	return false
}

// staticSelect performs weighted round-robin: advance the shared
// cursor and inspect the weighted schedule at cursor mod len(schedule),
// returning the first inspected backend present in the candidate set.
// Scans at most 2*len(schedule) positions before falling back to the
// first candidate.
func staticSelect(snap registry.Snapshot, candidates []registry.EntryView, cursor CursorSource) (contracts.Backend, bool) {
	if len(snap.Schedule) == 0 {
		return candidates[0].Backend, true
	}

	limit := 2 * len(snap.Schedule)
	for i := 0; i < limit; i++ {
		idx := cursor.NextCursor() % uint64(len(snap.Schedule))
		b := snap.Schedule[idx]
		if isCandidate(candidates, b) {
			return b, true
		}
	}
	return candidates[0].Backend, true
}

// minRTT returns the candidate with the smallest known RTT. Candidates
// with no RTT sample yet are ignored. Ties resolve to the first
// encountered in snapshot (registration) order.
func minRTT(candidates []registry.EntryView) (contracts.Backend, bool) {
	best := -1
	bestRTT := 0
	for i, c := range candidates {
		if !c.HasRTT {
			continue
		}
		if best == -1 || c.RTTMs < bestRTT {
			best = i
			bestRTT = c.RTTMs
		}
	}
	if best == -1 {
		return contracts.Backend{}, false
	}
	return candidates[best].Backend, true
}
