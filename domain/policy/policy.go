// Package policy provides access-control evaluation: pure, deny-by-default
// grant lookup per (principal-class, scope, operation). Policies are
// immutable snapshots; runtime reloads swap whole snapshots atomically at
// the dispatcher so in-flight calls keep the policy they started with.
package policy

import (
	"fmt"
	"strings"
)

// Operation is a requested access kind. Execute is distinct from read and
// write: the ability to read or write a module's data never implies the
// ability to invoke its RPCs.
type Operation string

const (
	OpRead    Operation = "read"
	OpWrite   Operation = "write"
	OpExecute Operation = "execute"
)

// Valid reports whether the operation is one of the recognized kinds.
func (o Operation) Valid() bool {
	switch o {
	case OpRead, OpWrite, OpExecute:
		return true
	}
	return false
}

// Rule grants a principal-class a set of operations on a scope.
// Scope is a slash path: usually a module name, optionally deeper.
// Without Cascade the grant covers exactly the scope path; with Cascade
// it also covers everything beneath it. Cascading is never inferred.
type Rule struct {
	Scope          string      `yaml:"scope" json:"scope"`
	PrincipalClass string      `yaml:"principal_class" json:"principal_class"`
	Operations     []Operation `yaml:"operations" json:"operations"`
	Cascade        bool        `yaml:"cascade" json:"cascade"`
}

// Validate checks a single rule for well-formedness.
func (r Rule) Validate() error {
	if strings.Trim(r.Scope, "/") == "" {
		return fmt.Errorf("rule with empty scope")
	}
	if r.PrincipalClass == "" {
		return fmt.Errorf("rule on %q with empty principal class", r.Scope)
	}
	if len(r.Operations) == 0 {
		return fmt.Errorf("rule on %q for %q grants no operations", r.Scope, r.PrincipalClass)
	}
	for _, op := range r.Operations {
		if !op.Valid() {
			return fmt.Errorf("rule on %q has unknown operation %q", r.Scope, op)
		}
	}
	return nil
}

// grant is the compiled permission set for one (class, scope) pair.
type grant struct {
	ops     map[Operation]bool
	cascade bool
}

// Policy is an immutable compiled snapshot of access rules.
type Policy struct {
	// byClass maps principal class -> scope path -> grant.
	byClass map[string]map[string]grant
}

// Compile builds a policy snapshot from rules. Rules for the same
// (class, scope) merge their operation sets; cascade merges with OR.
func Compile(rules []Rule) (*Policy, error) {
	p := &Policy{byClass: make(map[string]map[string]grant)}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		scope := strings.Trim(r.Scope, "/")
		scopes, ok := p.byClass[r.PrincipalClass]
		if !ok {
			scopes = make(map[string]grant)
			p.byClass[r.PrincipalClass] = scopes
		}
		g, ok := scopes[scope]
		if !ok {
			g = grant{ops: make(map[Operation]bool)}
		}
		for _, op := range r.Operations {
			g.ops[op] = true
		}
		g.cascade = g.cascade || r.Cascade
		scopes[scope] = g
	}
	return p, nil
}

// Empty returns a policy with no grants: everything is denied.
func Empty() *Policy {
	return &Policy{byClass: make(map[string]map[string]grant)}
}

// Allows reports whether the principal class may perform op on the node at
// path. Absence of an explicit grant is a denial: a zero-configuration
// policy denies everything. A grant applies when its scope equals the
// target path, or when it cascades and its scope is a segment prefix of
// the target path. A non-cascading grant on a parent never covers nested
// containers or lists.
func (p *Policy) Allows(principalClass, path string, op Operation) bool {
	scopes, ok := p.byClass[principalClass]
	if !ok {
		return false
	}
	target := strings.Trim(path, "/")
	for scope, g := range scopes {
		if !g.ops[op] {
			continue
		}
		if scope == target {
			return true
		}
		if g.cascade && strings.HasPrefix(target, scope+"/") {
			return true
		}
	}
	return false
}

// Classes returns the principal classes with at least one grant.
func (p *Policy) Classes() []string {
	out := make([]string, 0, len(p.byClass))
	for c := range p.byClass {
		out = append(out, c)
	}
	return out
}
