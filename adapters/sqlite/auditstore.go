package sqlite

import (
	"context"

	"github.com/artpar/datagate/ports"
)

// AuditStore implements ports.AuditStore using SQLite.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new SQLite audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// RecordBatch stores multiple audit entries.
func (s *AuditStore) RecordBatch(ctx context.Context, entries []ports.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_entries (
			id, session_id, principal, principal_class, operation, path,
			status, detail, unconstrained, latency_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		// Store timestamp in UTC for consistent querying
		_, err := stmt.ExecContext(ctx,
			e.ID, e.SessionID, e.Principal, e.PrincipalClass, e.Operation, e.Path,
			e.Status, e.Detail, boolToInt(e.Unconstrained), e.LatencyMs, e.Timestamp.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns the most recent entries, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]ports.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, principal, principal_class, operation, path,
		       status, detail, unconstrained, latency_ms, timestamp
		FROM audit_entries
		ORDER BY timestamp DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ports.AuditEntry
	for rows.Next() {
		var e ports.AuditEntry
		var unconstrained int
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Principal, &e.PrincipalClass, &e.Operation, &e.Path,
			&e.Status, &e.Detail, &unconstrained, &e.LatencyMs, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		e.Unconstrained = unconstrained != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus returns entry counts grouped by terminal status.
func (s *AuditStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM audit_entries GROUP BY status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
