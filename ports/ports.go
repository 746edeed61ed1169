// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/datagate/domain/policy"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Callback Port
// -----------------------------------------------------------------------------

// CallInput is what a registered callback receives: the resolved path, the
// validated and normalized value, and the caller identity. Callbacks are
// only ever invoked after validation and authorization both succeeded.
type CallInput struct {
	Path           string
	Value          any
	Operation      policy.Operation
	Principal      string
	PrincipalClass string
}

// CallResult is a callback's reply. An empty Code is success; a non-empty
// Code is an application error that the dispatcher maps to a response
// distinguishable from validation and authorization failures.
type CallResult struct {
	Payload any
	Code    string
}

// Handler is the capability a callback exposes to the dispatcher.
// Implementations may block; the dispatcher bounds them with a deadline
// and treats expiry as a callback error.
type Handler interface {
	Handle(ctx context.Context, in CallInput) (CallResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, in CallInput) (CallResult, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, in CallInput) (CallResult, error) {
	return f(ctx, in)
}

// -----------------------------------------------------------------------------
// Audit Ports
// -----------------------------------------------------------------------------

// AuditEntry records the terminal state of one dispatched call.
type AuditEntry struct {
	ID             string
	SessionID      string
	Principal      string
	PrincipalClass string
	Operation      string
	Path           string
	Status         string
	Detail         string
	Unconstrained  bool // an opaque leaf was accepted without validation
	LatencyMs      int64
	Timestamp      time.Time
}

// AuditRecorder accepts audit entries for async processing. Record must
// not block the dispatch path.
type AuditRecorder interface {
	Record(entry AuditEntry)

	// Flush forces immediate processing of queued entries.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining entries.
	Close() error
}

// AuditStore persists audit entries.
type AuditStore interface {
	// RecordBatch stores multiple audit entries.
	RecordBatch(ctx context.Context, entries []AuditEntry) error

	// Recent returns the most recent entries, newest first.
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)

	// CountByStatus returns entry counts grouped by terminal status.
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
