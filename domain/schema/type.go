package schema

import (
	"fmt"
	"regexp"
)

// TypeKind identifies the constraint variant of a leaf type.
type TypeKind int

const (
	// TypeOpaque carries no constraint at all. Values are accepted as-is
	// but the validator flags them as unconstrained for audit.
	TypeOpaque TypeKind = iota

	// TypePattern requires a string fully matching a regular expression.
	TypePattern

	// TypeRange requires an integer of a declared bit width within bounds.
	TypeRange

	// TypeEnum requires one of a closed set of tokens.
	TypeEnum

	// TypeIdentityRef requires the name of an identity derived from a base.
	TypeIdentityRef

	// TypeBoolean requires a boolean value.
	TypeBoolean
)

// String returns the type kind name.
func (k TypeKind) String() string {
	switch k {
	case TypeOpaque:
		return "opaque"
	case TypePattern:
		return "pattern"
	case TypeRange:
		return "range"
	case TypeEnum:
		return "enum"
	case TypeIdentityRef:
		return "identityref"
	case TypeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Type is the declared type of a leaf. Exactly one constraint variant is
// active, selected by Kind.
type Type struct {
	Kind TypeKind

	// Pattern is the source regular expression for TypePattern.
	Pattern string

	// Min, Max and Width configure TypeRange. Width is the bit width of the
	// integer (8, 16, 32 or 64).
	Min   int64
	Max   int64
	Width int

	// Enum lists the allowed tokens for TypeEnum.
	Enum []string

	// Base names the required base identity for TypeIdentityRef.
	Base string

	// re is the compiled, fully-anchored pattern, filled in by Build.
	re *regexp.Regexp
}

// Regexp returns the compiled pattern for TypePattern leaves. The pattern
// is anchored at both ends so partial matches never pass.
func (t *Type) Regexp() *regexp.Regexp {
	return t.re
}

// compile validates the type declaration and compiles the pattern.
func (t *Type) compile() error {
	switch t.Kind {
	case TypePattern:
		if t.Pattern == "" {
			return fmt.Errorf("pattern type with empty pattern")
		}
		re, err := regexp.Compile(`\A(?:` + t.Pattern + `)\z`)
		if err != nil {
			return fmt.Errorf("compile pattern %q: %w", t.Pattern, err)
		}
		t.re = re
	case TypeRange:
		switch t.Width {
		case 8, 16, 32, 64:
		case 0:
			t.Width = 64
		default:
			return fmt.Errorf("unsupported integer width %d", t.Width)
		}
		lo, hi := widthBounds(t.Width)
		if t.Min == 0 && t.Max == 0 {
			t.Min, t.Max = lo, hi
		}
		if t.Min > t.Max {
			return fmt.Errorf("range min %d greater than max %d", t.Min, t.Max)
		}
		if t.Min < lo || t.Max > hi {
			return fmt.Errorf("range [%d,%d] exceeds int%d bounds", t.Min, t.Max, t.Width)
		}
	case TypeEnum:
		if len(t.Enum) == 0 {
			return fmt.Errorf("enum type with no tokens")
		}
		seen := make(map[string]bool, len(t.Enum))
		for _, tok := range t.Enum {
			if seen[tok] {
				return fmt.Errorf("duplicate enum token %q", tok)
			}
			seen[tok] = true
		}
	case TypeIdentityRef:
		if t.Base == "" {
			return fmt.Errorf("identityref type with empty base")
		}
	case TypeBoolean, TypeOpaque:
	default:
		return fmt.Errorf("unknown type kind %d", t.Kind)
	}
	return nil
}

// widthBounds returns the representable range for a signed integer width.
func widthBounds(width int) (int64, int64) {
	switch width {
	case 8:
		return -128, 127
	case 16:
		return -32768, 32767
	case 32:
		return -2147483648, 2147483647
	default:
		return -9223372036854775808, 9223372036854775807
	}
}
