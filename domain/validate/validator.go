package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/datagate/domain/identity"
	"github.com/artpar/datagate/domain/schema"
)

// Validator checks raw values against schema nodes. It holds only
// immutable build-time state and is safe for concurrent use.
type Validator struct {
	Identities *identity.Registry
}

// New creates a validator backed by the given identity registry.
func New(identities *identity.Registry) Validator {
	return Validator{Identities: identities}
}

// Validate checks a raw value against a schema node and returns the
// outcome. Re-validating an accepted value always yields the same result:
// no hidden state is read or written.
func (v Validator) Validate(node *schema.Node, value any) Outcome {
	out := Outcome{Valid: true}
	normalized := v.validateNode(node, node.Path(), value, &out)
	if out.Valid {
		out.Value = normalized
	}
	return out
}

func (v Validator) validateNode(node *schema.Node, path string, value any, out *Outcome) any {
	switch node.Kind {
	case schema.KindLeaf:
		return v.validateLeaf(node, path, value, out)
	case schema.KindContainer, schema.KindRPC, schema.KindNotification:
		return v.validateChildren(node, path, value, out)
	case schema.KindList:
		return v.validateList(node, path, value, out)
	default:
		out.addFailure(KindTypeMismatch, path, "unsupported node kind %s", node.Kind)
		return nil
	}
}

// validateLeaf matches a scalar against the leaf's declared type.
func (v Validator) validateLeaf(node *schema.Node, path string, value any, out *Outcome) any {
	t := node.Type
	switch t.Kind {
	case schema.TypePattern:
		s, ok := value.(string)
		if !ok {
			out.addFailure(KindTypeMismatch, path, "expected string, got %T", value)
			return nil
		}
		// Anchored at both ends: a value merely containing a matching
		// substring is rejected.
		if !t.Regexp().MatchString(s) {
			out.addFailure(KindPatternMismatch, path, "value does not fully match pattern %q", t.Pattern)
			return nil
		}
		return s

	case schema.TypeRange:
		n, ok := toInt64(value)
		if !ok {
			out.addFailure(KindTypeMismatch, path, "expected int%d, got %T(%v)", t.Width, value, value)
			return nil
		}
		if n < t.Min {
			out.addFailure(KindRangeViolation, path, "value %d below minimum %d", n, t.Min)
			return nil
		}
		if n > t.Max {
			out.addFailure(KindRangeViolation, path, "value %d above maximum %d", n, t.Max)
			return nil
		}
		return n

	case schema.TypeEnum:
		s, ok := value.(string)
		if !ok {
			out.addFailure(KindTypeMismatch, path, "expected enum token, got %T", value)
			return nil
		}
		for _, tok := range t.Enum {
			if s == tok {
				return s
			}
		}
		out.addFailure(KindEnumViolation, path, "token %q not one of: %s", s, strings.Join(t.Enum, ", "))
		return nil

	case schema.TypeIdentityRef:
		s, ok := value.(string)
		if !ok {
			out.addFailure(KindTypeMismatch, path, "expected identity name, got %T", value)
			return nil
		}
		// Unknown identity names are rejected outright, never treated as
		// opaque strings.
		if v.Identities == nil || !v.Identities.Has(s) {
			out.addFailure(KindUnknownIdentity, path, "unknown identity %q", s)
			return nil
		}
		if !v.Identities.DerivedFrom(s, t.Base) {
			out.addFailure(KindIdentityNotDerived, path, "identity %q is not derived from %q", s, t.Base)
			return nil
		}
		return s

	case schema.TypeBoolean:
		switch b := value.(type) {
		case bool:
			return b
		case string:
			if b == "true" {
				return true
			}
			if b == "false" {
				return false
			}
		}
		out.addFailure(KindTypeMismatch, path, "expected boolean, got %T(%v)", value, value)
		return nil

	case schema.TypeOpaque:
		// Accepted as-is, but surfaced to the dispatcher for audit:
		// a leaf without pattern, range or enum receives no real validation.
		out.Unconstrained = append(out.Unconstrained, path)
		return value

	default:
		out.addFailure(KindTypeMismatch, path, "unsupported type kind %s", t.Kind)
		return nil
	}
}

// validateChildren checks a keyed payload against a node's child schema.
// Unknown fields are rejected, never silently dropped.
func (v Validator) validateChildren(node *schema.Node, path string, value any, out *Outcome) any {
	fields, ok := value.(map[string]any)
	if !ok {
		// An absent payload is an empty object: mandatory children are
		// still reported missing, an inputless rpc still passes.
		if value == nil {
			fields = map[string]any{}
		} else {
			out.addFailure(KindTypeMismatch, path, "expected object for %s, got %T", node.Kind, value)
			return nil
		}
	}

	normalized := make(map[string]any, len(fields))
	for name, raw := range fields {
		child, ok := node.Child(name)
		if !ok {
			out.addFailure(KindUnknownNode, path+"/"+name, "node not present in schema")
			continue
		}
		normalized[name] = v.validateNode(child, path+"/"+name, raw, out)
	}

	for _, child := range node.Children {
		if _, present := fields[child.Name]; present {
			continue
		}
		if child.Mandatory || (child.Kind == schema.KindList && child.MinElements > 0) {
			out.addFailure(KindMissingMandatory, path+"/"+child.Name, "mandatory node missing")
		}
	}
	return normalized
}

// validateList checks entry multiplicity, key uniqueness and each entry's
// children. A single object is treated as one entry targeted via a
// list-key predicate path; cardinality applies only to full replacements.
func (v Validator) validateList(node *schema.Node, path string, value any, out *Outcome) any {
	if entry, ok := value.(map[string]any); ok {
		return v.validateChildren(node, path, entry, out)
	}

	entries, ok := value.([]any)
	if !ok {
		out.addFailure(KindTypeMismatch, path, "expected list entries, got %T", value)
		return nil
	}

	if len(entries) < node.MinElements {
		out.addFailure(KindCardinality, path, "%d entries, minimum is %d", len(entries), node.MinElements)
	}
	if node.MaxElements != 0 && len(entries) > node.MaxElements {
		out.addFailure(KindCardinality, path, "%d entries, maximum is %d", len(entries), node.MaxElements)
	}

	normalized := make([]any, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, raw := range entries {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		entry := v.validateChildren(node, entryPath, raw, out)
		normalized = append(normalized, entry)

		if len(node.Keys) == 0 {
			continue
		}
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		key, complete := entryKey(node.Keys, fields)
		if !complete {
			continue // missing key leaves already reported as mandatory
		}
		if seen[key] {
			out.addFailure(KindDuplicateKey, entryPath, "duplicate key %s", key)
			continue
		}
		seen[key] = true
	}
	return normalized
}

// entryKey builds a comparable key tuple from an entry's key leaf values.
func entryKey(keys []string, fields map[string]any) (string, bool) {
	var b strings.Builder
	for _, k := range keys {
		val, ok := fields[k]
		if !ok {
			return "", false
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprintf("%v", val))
		b.WriteByte(';')
	}
	return b.String(), true
}

// toInt64 converts the numeric representations produced by JSON and YAML
// decoders to int64. Fractional floats are rejected.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
