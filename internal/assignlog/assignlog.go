// Package assignlog implements the balancer's assignment log: a
// bounded FIFO of the client->backend dispatches the balancer has made.
// It is advisory only: it records who was directed where, not who is
// currently connected.
package assignlog

import (
	"sync"

	"github.com/pranshu258/linebalancer/internal/contracts"
)

// MaxEntries is the ring's capacity; the oldest entry is evicted once
// it is exceeded.
const MaxEntries = 500

// Log is a thread-safe bounded ring of ClientRecords.
type Log struct {
	mu      sync.Mutex
	entries []contracts.ClientRecord
}

// New returns an empty assignment log.
func New() *Log {
	return &Log{entries: make([]contracts.ClientRecord, 0, MaxEntries)}
}

// Append records a new assignment, evicting the oldest entry if the
// ring is already at capacity.
func (l *Log) Append(rec contracts.ClientRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, rec)
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[len(l.entries)-MaxEntries:]
	}
}

// Recent returns a copy of all entries, oldest first.
func (l *Log) Recent() []contracts.ClientRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]contracts.ClientRecord(nil), l.entries...)
}

// Clear empties the log.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// ByBackend groups the current entries by backend, for admin display.
func (l *Log) ByBackend() map[contracts.Backend][]contracts.ClientRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[contracts.Backend][]contracts.ClientRecord)
	for _, e := range l.entries {
		out[e.Backend] = append(out[e.Backend], e)
	}
	return out
}
