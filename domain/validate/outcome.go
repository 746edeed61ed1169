// Package validate checks candidate values against the compiled constraint
// tree. Validation is a pure function of (tree, identity registry, input)
// with no side effects, so it is safe to run concurrently across sessions
// and independent subtrees.
package validate

import (
	"fmt"
	"strings"
)

// FailureKind is the machine-distinguishable category of a rejection.
type FailureKind string

const (
	// KindTypeMismatch means the value's shape does not fit the node kind.
	KindTypeMismatch FailureKind = "type_mismatch"

	// KindPatternMismatch means the value does not fully match the pattern.
	KindPatternMismatch FailureKind = "pattern_mismatch"

	// KindRangeViolation means a number is outside the declared range.
	KindRangeViolation FailureKind = "range_violation"

	// KindEnumViolation means the token is not in the declared set.
	KindEnumViolation FailureKind = "enum_violation"

	// KindUnknownIdentity means the value names no declared identity.
	KindUnknownIdentity FailureKind = "unknown_identity"

	// KindIdentityNotDerived means the identity does not derive from the base.
	KindIdentityNotDerived FailureKind = "identity_not_derived"

	// KindMissingMandatory means a required child is absent.
	KindMissingMandatory FailureKind = "missing_mandatory"

	// KindUnknownNode means the payload carries a field the schema lacks.
	KindUnknownNode FailureKind = "unknown_node"

	// KindCardinality means a list occurrence count violates min/max.
	KindCardinality FailureKind = "cardinality_violation"

	// KindDuplicateKey means two list entries share the same key values.
	KindDuplicateKey FailureKind = "duplicate_key"

	// KindUnconstrainedRejected means an opaque leaf was refused because
	// the deployment does not accept values no constraint can check.
	KindUnconstrainedRejected FailureKind = "unconstrained_rejected"
)

// Failure is one structured rejection. Every failure carries the offending
// path even when caller-facing detail is later suppressed.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Path   string      `json:"path"`
	Detail string      `json:"detail"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Path, f.Kind, f.Detail)
}

// Outcome is the result of validating one value against one schema node.
type Outcome struct {
	// Valid is true when no failure was recorded.
	Valid bool `json:"valid"`

	// Value is the normalized value. Only meaningful when Valid.
	Value any `json:"value,omitempty"`

	// Unconstrained lists paths of opaque leaves that were accepted
	// without any real validation, for the audit layer.
	Unconstrained []string `json:"unconstrained,omitempty"`

	// Failures holds every rejection found, in document order.
	Failures []Failure `json:"failures,omitempty"`
}

// First returns the first failure, or a zero Failure when valid.
func (o Outcome) First() Failure {
	if len(o.Failures) == 0 {
		return Failure{}
	}
	return o.Failures[0]
}

// Detail returns a combined human-readable failure description.
func (o Outcome) Detail() string {
	if o.Valid {
		return ""
	}
	msgs := make([]string, len(o.Failures))
	for i, f := range o.Failures {
		msgs[i] = f.Error()
	}
	return strings.Join(msgs, "; ")
}

func (o *Outcome) addFailure(kind FailureKind, path, format string, args ...any) {
	o.Valid = false
	o.Failures = append(o.Failures, Failure{
		Kind:   kind,
		Path:   path,
		Detail: fmt.Sprintf(format, args...),
	})
}
