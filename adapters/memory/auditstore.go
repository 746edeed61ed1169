// Package memory provides in-memory implementations of storage ports.
// Suitable for tests and single-process deployments without persistence.
package memory

import (
	"context"
	"sync"

	"github.com/artpar/datagate/ports"
)

// AuditStore keeps audit entries in a bounded in-memory ring.
type AuditStore struct {
	mu      sync.RWMutex
	entries []ports.AuditEntry
	limit   int
}

// NewAuditStore creates an audit store keeping at most limit entries.
// A zero limit keeps the most recent 10000.
func NewAuditStore(limit int) *AuditStore {
	if limit <= 0 {
		limit = 10000
	}
	return &AuditStore{limit: limit}
}

// RecordBatch stores multiple audit entries, evicting oldest first.
func (s *AuditStore) RecordBatch(_ context.Context, entries []ports.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]ports.AuditEntry(nil), s.entries[over:]...)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *AuditStore) Recent(_ context.Context, limit int) ([]ports.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]ports.AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// CountByStatus returns entry counts grouped by terminal status.
func (s *AuditStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int64)
	for _, e := range s.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
