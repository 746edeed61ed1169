// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/artpar/datagate/adapters/metrics"
	"github.com/artpar/datagate/core/handler"
	"github.com/artpar/datagate/domain/identity"
	"github.com/artpar/datagate/domain/policy"
	"github.com/artpar/datagate/domain/schema"
	"github.com/artpar/datagate/domain/session"
	"github.com/artpar/datagate/domain/validate"
	"github.com/artpar/datagate/ports"
	"github.com/rs/zerolog"
)

// State tracks a call through the dispatch pipeline.
type State int

const (
	StateReceived State = iota
	StateResolved
	StateValidated
	StateAuthorized
	StateInvoked
	StateCompleted

	// Terminal error states.
	StateNotFound
	StateRejected
	StateDenied
	StateCallbackError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateResolved:
		return "resolved"
	case StateValidated:
		return "validated"
	case StateAuthorized:
		return "authorized"
	case StateInvoked:
		return "invoked"
	case StateCompleted:
		return "completed"
	case StateNotFound:
		return "not_found"
	case StateRejected:
		return "rejected"
	case StateDenied:
		return "denied"
	case StateCallbackError:
		return "callback_error"
	default:
		return "unknown"
	}
}

// Status is the caller-facing exit status of a dispatched call.
type Status string

const (
	StatusOK               Status = "OK"
	StatusNotFound         Status = "NOT_FOUND"
	StatusValidationFailed Status = "VALIDATION_FAILED"
	StatusAccessDenied     Status = "ACCESS_DENIED"
	StatusCallbackError    Status = "CALLBACK_ERROR"
)

// Result is the response envelope for one dispatched call.
type Result struct {
	CallID  string `json:"call_id"`
	Status  Status `json:"status"`
	Path    string `json:"path"`
	Detail  string `json:"detail,omitempty"`
	Payload any    `json:"payload,omitempty"`

	// Failures carries structured validation rejections. Populated only
	// when the caller is authorized to read the target subtree.
	Failures []validate.Failure `json:"failures,omitempty"`

	// Unconstrained lists opaque leaf paths accepted without validation.
	Unconstrained []string `json:"unconstrained,omitempty"`

	// State is the terminal pipeline state, for audit and tests.
	State State `json:"-"`
}

// DispatcherDeps contains dependencies for the Dispatcher.
type DispatcherDeps struct {
	Tree       *schema.Tree
	Identities *identity.Registry
	Handlers   *handler.Registry
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Audit      ports.AuditRecorder
	Metrics    *metrics.Collector
	Logger     zerolog.Logger
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// CallbackTimeout bounds callback execution. Zero means 30s.
	CallbackTimeout time.Duration

	// RejectUnconstrained turns acceptance of opaque leaves into a
	// validation failure instead of an audit flag.
	RejectUnconstrained bool
}

// Dispatcher orchestrates Validate -> Authorize -> Invoke for every
// inbound call and owns the per-module write locking. Schema and identity
// state are immutable; the policy snapshot is swapped atomically on
// reload, and each call pins the snapshot current at its start.
type Dispatcher struct {
	tree       *schema.Tree
	identities *identity.Registry
	validator  validate.Validator
	handlers   *handler.Registry
	locks      *moduleLocks
	clock      ports.Clock
	idGen      ports.IDGenerator
	audit      ports.AuditRecorder
	metrics    *metrics.Collector
	logger     zerolog.Logger

	callbackTimeout     time.Duration
	rejectUnconstrained bool

	policy atomic.Pointer[policy.Policy]
}

// NewDispatcher creates a dispatcher with an initial policy snapshot.
func NewDispatcher(deps DispatcherDeps, cfg DispatcherConfig, initial *policy.Policy) *Dispatcher {
	if cfg.CallbackTimeout == 0 {
		cfg.CallbackTimeout = 30 * time.Second
	}
	if initial == nil {
		initial = policy.Empty()
	}
	d := &Dispatcher{
		tree:                deps.Tree,
		identities:          deps.Identities,
		validator:           validate.New(deps.Identities),
		handlers:            deps.Handlers,
		locks:               newModuleLocks(),
		clock:               deps.Clock,
		idGen:               deps.IDGen,
		audit:               deps.Audit,
		metrics:             deps.Metrics,
		logger:              deps.Logger,
		callbackTimeout:     cfg.CallbackTimeout,
		rejectUnconstrained: cfg.RejectUnconstrained,
	}
	d.policy.Store(initial)
	return d
}

// UpdatePolicy swaps in a new policy snapshot. Calls that already loaded
// the previous snapshot finish against it; only the pointer swap is
// serialized, so readers are never blocked on re-evaluation.
func (d *Dispatcher) UpdatePolicy(p *policy.Policy) {
	if p == nil {
		p = policy.Empty()
	}
	d.policy.Store(p)
}

// Dispatch runs one inbound call through the pipeline. The callback is
// never reached unless validation and authorization both succeeded, and
// all held locks are released on every exit path, including callback
// panic, timeout and cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, op policy.Operation, path string, payload any) Result {
	start := d.clock.Now()

	if d.metrics != nil {
		d.metrics.CallsInFlight.Inc()
		defer d.metrics.CallsInFlight.Dec()
	}

	// Pin the policy snapshot for the whole call. A concurrent reload
	// must not affect a call already past this point.
	snapshot := d.policy.Load()

	res := d.dispatch(ctx, snapshot, sess, op, path, payload)
	res.CallID = d.idGen.New()

	d.finish(sess, op, path, start, &res)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, snapshot *policy.Policy, sess *session.Session, op policy.Operation, path string, payload any) Result {
	if !op.Valid() {
		return Result{
			Status: StatusNotFound,
			Path:   path,
			Detail: fmt.Sprintf("unknown operation %q", op),
			State:  StateNotFound,
		}
	}

	// Received -> Resolved. Unknown paths are always safe to disclose.
	steps, err := schema.ParsePath(path)
	if err != nil {
		return Result{Status: StatusNotFound, Path: path, Detail: err.Error(), State: StateNotFound}
	}
	node, err := d.tree.ResolveSteps(steps)
	if err != nil {
		return Result{Status: StatusNotFound, Path: path, Detail: err.Error(), State: StateNotFound}
	}
	schemaPath := schema.SchemaPath(steps)

	if detail, ok := operationFits(op, node); !ok {
		return Result{Status: StatusNotFound, Path: schemaPath, Detail: detail, State: StateNotFound}
	}

	// The target region is locked for the rest of the pipeline: exclusive
	// for writes and RPCs with side effects, shared for reads.
	exclusive := op != policy.OpRead
	module := node.Module()
	release := d.locks.acquire(module, exclusive)
	if exclusive {
		sess.TrackLock(module)
	}
	defer func() {
		release()
		if exclusive {
			sess.UntrackLock(module)
		}
	}()

	// Resolved -> Validated. Reads carry no candidate value; writes and
	// executes are always validated, nil payload included, so missing
	// mandatory input is caught before the callback.
	outcome := validate.Outcome{Valid: true}
	if op != policy.OpRead {
		outcome = d.validator.Validate(node, payload)
	}
	if outcome.Valid && d.rejectUnconstrained && len(outcome.Unconstrained) > 0 {
		outcome.Valid = false
		for _, p := range outcome.Unconstrained {
			outcome.Failures = append(outcome.Failures, validate.Failure{
				Kind:   validate.KindUnconstrainedRejected,
				Path:   p,
				Detail: "unconstrained leaf rejected by policy",
			})
		}
	}

	canRead := snapshot.Allows(sess.PrincipalClass, schemaPath, policy.OpRead)

	if !outcome.Valid {
		// A caller without read access to the subtree gets a generic
		// denial: detailed schema-mismatch messages would reveal schema
		// shape to a probing caller.
		if !canRead {
			return Result{Status: StatusAccessDenied, Path: schemaPath, State: StateDenied}
		}
		return Result{
			Status:   StatusValidationFailed,
			Path:     schemaPath,
			Detail:   outcome.Detail(),
			Failures: outcome.Failures,
			State:    StateRejected,
		}
	}

	// Validated -> Authorized. Deny-by-default; reasons are never
	// disclosed, to avoid leaking policy structure.
	if !snapshot.Allows(sess.PrincipalClass, schemaPath, op) {
		return Result{Status: StatusAccessDenied, Path: schemaPath, State: StateDenied}
	}

	// Authorized -> Invoked.
	h, ok := d.handlers.Lookup(schemaPath)
	if !ok {
		return Result{
			Status: StatusCallbackError,
			Path:   schemaPath,
			Detail: "no handler registered",
			State:  StateCallbackError,
		}
	}

	in := ports.CallInput{
		Path:           path,
		Value:          outcome.Value,
		Operation:      op,
		Principal:      sess.Principal,
		PrincipalClass: sess.PrincipalClass,
	}
	callRes, err := d.invoke(ctx, h, in)
	if err != nil {
		detail := "callback failed"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			detail = "timeout"
			if d.metrics != nil {
				d.metrics.CallbackTimeouts.Inc()
			}
		case errors.Is(err, context.Canceled):
			detail = "cancelled"
		}
		return Result{Status: StatusCallbackError, Path: schemaPath, Detail: detail, State: StateCallbackError}
	}
	if callRes.Code != "" {
		return Result{
			Status: StatusCallbackError,
			Path:   schemaPath,
			Detail: callRes.Code,
			State:  StateCallbackError,
		}
	}

	// Invoked -> Completed.
	return Result{
		Status:        StatusOK,
		Path:          schemaPath,
		Payload:       callRes.Payload,
		Unconstrained: outcome.Unconstrained,
		State:         StateCompleted,
	}
}

type callOutcome struct {
	res ports.CallResult
	err error
}

// invoke runs the callback under a deadline, converting panics and
// context expiry into errors so locks always unwind.
func (d *Dispatcher) invoke(ctx context.Context, h ports.Handler, in ports.CallInput) (ports.CallResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callbackTimeout)
	defer cancel()

	// Buffered so a late callback never leaks its goroutine.
	ch := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- callOutcome{err: fmt.Errorf("callback panic: %v", r)}
			}
		}()
		res, err := h.Handle(ctx, in)
		ch <- callOutcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return ports.CallResult{}, ctx.Err()
	}
}

// operationFits checks the operation against the node variant. RPCs accept
// only execute; notifications only delivery; data nodes only read/write.
func operationFits(op policy.Operation, node *schema.Node) (string, bool) {
	switch node.Kind {
	case schema.KindRPC:
		if op != policy.OpExecute {
			return fmt.Sprintf("%q is an rpc, operation %q not supported", node.Path(), op), false
		}
	case schema.KindNotification:
		if op != policy.OpRead {
			return fmt.Sprintf("%q is a notification, operation %q not supported", node.Path(), op), false
		}
	default:
		if op == policy.OpExecute {
			return fmt.Sprintf("%q is not an rpc", node.Path()), false
		}
	}
	return "", true
}

// finish emits audit, metrics and logs for a terminal state.
func (d *Dispatcher) finish(sess *session.Session, op policy.Operation, path string, start time.Time, res *Result) {
	latency := d.clock.Now().Sub(start)

	if d.metrics != nil {
		d.metrics.DispatchTotal.WithLabelValues(string(op), string(res.Status)).Inc()
		d.metrics.DispatchDuration.WithLabelValues(string(op)).Observe(latency.Seconds())
		if res.State == StateRejected {
			for _, f := range res.Failures {
				d.metrics.ValidationFailures.WithLabelValues(string(f.Kind)).Inc()
			}
		}
		if res.State == StateDenied {
			d.metrics.AuthzDenials.WithLabelValues(string(op)).Inc()
		}
		if len(res.Unconstrained) > 0 {
			d.metrics.UnconstrainedAccepts.Add(float64(len(res.Unconstrained)))
		}
	}

	if d.audit != nil {
		d.audit.Record(ports.AuditEntry{
			ID:             res.CallID,
			SessionID:      sess.ID,
			Principal:      sess.Principal,
			PrincipalClass: sess.PrincipalClass,
			Operation:      string(op),
			Path:           res.Path,
			Status:         string(res.Status),
			Detail:         res.Detail,
			Unconstrained:  len(res.Unconstrained) > 0,
			LatencyMs:      latency.Milliseconds(),
			Timestamp:      start,
		})
	}

	evt := d.logger.Info()
	if res.Status != StatusOK {
		evt = d.logger.Warn()
	}
	evt.
		Str("call_id", res.CallID).
		Str("session", sess.ID).
		Str("principal_class", sess.PrincipalClass).
		Str("op", string(op)).
		Str("path", path).
		Str("status", string(res.Status)).
		Dur("latency", latency).
		Msg("dispatch")
}
