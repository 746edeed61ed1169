package validate_test

import (
	"reflect"
	"testing"

	"github.com/artpar/datagate/domain/identity"
	"github.com/artpar/datagate/domain/schema"
	"github.com/artpar/datagate/domain/validate"
)

func testFixtures(t *testing.T) (*schema.Tree, validate.Validator) {
	t.Helper()

	reg, err := identity.BuildRegistry([]identity.Def{
		{Name: "restart-reason"},
		{Name: "operator-initiated", Bases: []string{"restart-reason"}},
		{Name: "shutdown", Bases: []string{"operator-initiated"}},
		{Name: "disk-event"},
		{Name: "format-disk", Bases: []string{"disk-event"}},
	})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}

	roots := []*schema.Node{
		{
			Name: "system",
			Kind: schema.KindContainer,
			Children: []*schema.Node{
				{Name: "hostname", Kind: schema.KindLeaf, Mandatory: true,
					Type: &schema.Type{Kind: schema.TypePattern, Pattern: `[a-f0-9]+`}},
				{Name: "cpu-load", Kind: schema.KindLeaf,
					Type: &schema.Type{Kind: schema.TypeRange, Min: 0, Max: 100}},
				{Name: "duplex", Kind: schema.KindLeaf,
					Type: &schema.Type{Kind: schema.TypeEnum, Enum: []string{"full", "half", "auto"}}},
				{Name: "reason", Kind: schema.KindLeaf,
					Type: &schema.Type{Kind: schema.TypeIdentityRef, Base: "restart-reason"}},
				{Name: "enabled", Kind: schema.KindLeaf,
					Type: &schema.Type{Kind: schema.TypeBoolean}},
				{Name: "location", Kind: schema.KindLeaf},
			},
		},
		{
			Name: "interfaces",
			Kind: schema.KindContainer,
			Children: []*schema.Node{
				{
					Name: "interface",
					Kind: schema.KindList,
					Keys: []string{"name"},
					Children: []*schema.Node{
						{Name: "name", Kind: schema.KindLeaf, Mandatory: true,
							Type: &schema.Type{Kind: schema.TypePattern, Pattern: `[a-z]+[0-9]+`}},
						{Name: "mtu", Kind: schema.KindLeaf,
							Type: &schema.Type{Kind: schema.TypeRange, Min: 68, Max: 9216}},
					},
				},
			},
		},
	}
	tree, err := schema.Build(roots, reg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tree, validate.New(reg)
}

func mustResolve(t *testing.T, tree *schema.Tree, path string) *schema.Node {
	t.Helper()
	node, err := tree.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve(%q) error = %v", path, err)
	}
	return node
}

func TestValidateLeaf(t *testing.T) {
	tree, v := testFixtures(t)

	tests := []struct {
		name     string
		path     string
		value    any
		valid    bool
		kind     validate.FailureKind
		wantNorm any
	}{
		// pattern: full match required, partial match rejected
		{name: "pattern match", path: "system/hostname", value: "deadbeef", valid: true, wantNorm: "deadbeef"},
		{name: "pattern trailing garbage", path: "system/hostname", value: "deadbeef; rm -rf /", valid: false, kind: validate.KindPatternMismatch},
		{name: "pattern leading garbage", path: "system/hostname", value: "xdeadbeef", valid: false, kind: validate.KindPatternMismatch},
		{name: "pattern wrong type", path: "system/hostname", value: 42, valid: false, kind: validate.KindTypeMismatch},

		// range
		{name: "range inside", path: "system/cpu-load", value: 50, valid: true, wantNorm: int64(50)},
		{name: "range at max", path: "system/cpu-load", value: 100, valid: true, wantNorm: int64(100)},
		{name: "range above max", path: "system/cpu-load", value: 150, valid: false, kind: validate.KindRangeViolation},
		{name: "range below min", path: "system/cpu-load", value: -1, valid: false, kind: validate.KindRangeViolation},
		{name: "range numeric string", path: "system/cpu-load", value: "50", valid: true, wantNorm: int64(50)},
		{name: "range whole float", path: "system/cpu-load", value: float64(50), valid: true, wantNorm: int64(50)},
		{name: "range fractional float", path: "system/cpu-load", value: 50.5, valid: false, kind: validate.KindTypeMismatch},

		// enum
		{name: "enum member", path: "system/duplex", value: "full", valid: true, wantNorm: "full"},
		{name: "enum case sensitive", path: "system/duplex", value: "Full", valid: false, kind: validate.KindEnumViolation},
		{name: "enum unknown", path: "system/duplex", value: "simplex", valid: false, kind: validate.KindEnumViolation},

		// identityref
		{name: "identity direct", path: "system/reason", value: "operator-initiated", valid: true, wantNorm: "operator-initiated"},
		{name: "identity transitive", path: "system/reason", value: "shutdown", valid: true, wantNorm: "shutdown"},
		{name: "identity base itself", path: "system/reason", value: "restart-reason", valid: true, wantNorm: "restart-reason"},
		{name: "identity wrong branch", path: "system/reason", value: "format-disk", valid: false, kind: validate.KindIdentityNotDerived},
		{name: "identity unknown", path: "system/reason", value: "made-up", valid: false, kind: validate.KindUnknownIdentity},

		// boolean
		{name: "bool native", path: "system/enabled", value: true, valid: true, wantNorm: true},
		{name: "bool string true", path: "system/enabled", value: "true", valid: true, wantNorm: true},
		{name: "bool string false", path: "system/enabled", value: "false", valid: true, wantNorm: false},
		{name: "bool yes rejected", path: "system/enabled", value: "yes", valid: false, kind: validate.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.Validate(mustResolve(t, tree, tt.path), tt.value)
			if out.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (failures: %v)", out.Valid, tt.valid, out.Failures)
			}
			if !tt.valid {
				if out.First().Kind != tt.kind {
					t.Errorf("failure kind = %q, want %q", out.First().Kind, tt.kind)
				}
				return
			}
			if !reflect.DeepEqual(out.Value, tt.wantNorm) {
				t.Errorf("normalized = %#v, want %#v", out.Value, tt.wantNorm)
			}
		})
	}
}

func TestValidateUnconstrainedLeaf(t *testing.T) {
	tree, v := testFixtures(t)

	out := v.Validate(mustResolve(t, tree, "system/location"), "rack 7, row B")
	if !out.Valid {
		t.Fatalf("opaque leaf rejected: %v", out.Failures)
	}
	if len(out.Unconstrained) != 1 || out.Unconstrained[0] != "system/location" {
		t.Errorf("Unconstrained = %v, want [system/location]", out.Unconstrained)
	}
}

func TestValidateContainer(t *testing.T) {
	tree, v := testFixtures(t)
	node := mustResolve(t, tree, "system")

	t.Run("valid payload", func(t *testing.T) {
		out := v.Validate(node, map[string]any{
			"hostname": "cafe01",
			"cpu-load": 12,
			"enabled":  "true",
		})
		if !out.Valid {
			t.Fatalf("rejected: %v", out.Failures)
		}
		got := out.Value.(map[string]any)
		if got["cpu-load"] != int64(12) {
			t.Errorf("cpu-load normalized = %#v, want int64(12)", got["cpu-load"])
		}
		if got["enabled"] != true {
			t.Errorf("enabled normalized = %#v, want true", got["enabled"])
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		out := v.Validate(node, map[string]any{
			"hostname": "cafe01",
			"color":    "blue",
		})
		if out.Valid {
			t.Fatal("expected rejection for unknown field")
		}
		if out.First().Kind != validate.KindUnknownNode {
			t.Errorf("kind = %q, want %q", out.First().Kind, validate.KindUnknownNode)
		}
		if out.First().Path != "system/color" {
			t.Errorf("path = %q, want system/color", out.First().Path)
		}
	})

	t.Run("missing mandatory", func(t *testing.T) {
		out := v.Validate(node, map[string]any{"cpu-load": 5})
		if out.Valid {
			t.Fatal("expected rejection for missing mandatory leaf")
		}
		if out.First().Kind != validate.KindMissingMandatory {
			t.Errorf("kind = %q, want %q", out.First().Kind, validate.KindMissingMandatory)
		}
	})

	t.Run("nil payload reports mandatory children", func(t *testing.T) {
		out := v.Validate(node, nil)
		if out.Valid {
			t.Fatal("expected rejection for absent payload")
		}
		if out.First().Kind != validate.KindMissingMandatory {
			t.Errorf("kind = %q, want %q", out.First().Kind, validate.KindMissingMandatory)
		}
		if out.First().Path != "system/hostname" {
			t.Errorf("path = %q, want system/hostname", out.First().Path)
		}
	})

	t.Run("nil payload without mandatory children", func(t *testing.T) {
		out := v.Validate(mustResolve(t, tree, "interfaces"), nil)
		if !out.Valid {
			t.Fatalf("rejected: %v", out.Failures)
		}
	})

	t.Run("multiple failures collected", func(t *testing.T) {
		out := v.Validate(node, map[string]any{
			"cpu-load": 9999,
			"duplex":   "simplex",
		})
		if out.Valid {
			t.Fatal("expected rejection")
		}
		// range + enum + missing mandatory hostname
		if len(out.Failures) != 3 {
			t.Errorf("failures = %d, want 3: %v", len(out.Failures), out.Failures)
		}
	})
}

func TestValidateList(t *testing.T) {
	tree, v := testFixtures(t)
	node := mustResolve(t, tree, "interfaces/interface")

	t.Run("distinct keys accepted", func(t *testing.T) {
		out := v.Validate(node, []any{
			map[string]any{"name": "eth0", "mtu": 1500},
			map[string]any{"name": "eth1", "mtu": 9000},
		})
		if !out.Valid {
			t.Fatalf("rejected: %v", out.Failures)
		}
	})

	t.Run("duplicate keys rejected", func(t *testing.T) {
		out := v.Validate(node, []any{
			map[string]any{"name": "eth0"},
			map[string]any{"name": "eth0"},
		})
		if out.Valid {
			t.Fatal("expected rejection for duplicate key")
		}
		if out.First().Kind != validate.KindDuplicateKey {
			t.Errorf("kind = %q, want %q", out.First().Kind, validate.KindDuplicateKey)
		}
	})

	t.Run("single entry object", func(t *testing.T) {
		out := v.Validate(node, map[string]any{"name": "eth0", "mtu": 1500})
		if !out.Valid {
			t.Fatalf("rejected: %v", out.Failures)
		}
	})

	t.Run("entry children validated", func(t *testing.T) {
		out := v.Validate(node, []any{
			map[string]any{"name": "eth0", "mtu": 40},
		})
		if out.Valid {
			t.Fatal("expected rejection for mtu below minimum")
		}
		if out.First().Kind != validate.KindRangeViolation {
			t.Errorf("kind = %q, want %q", out.First().Kind, validate.KindRangeViolation)
		}
	})
}

func TestListCardinality(t *testing.T) {
	reg, err := identity.BuildRegistry(nil)
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	roots := []*schema.Node{
		{Name: "dns", Kind: schema.KindContainer, Children: []*schema.Node{
			{Name: "server", Kind: schema.KindList, MinElements: 1, MaxElements: 3,
				Keys: []string{"address"},
				Children: []*schema.Node{
					{Name: "address", Kind: schema.KindLeaf, Mandatory: true},
				}},
		}},
	}
	tree, err := schema.Build(roots, reg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	v := validate.New(reg)
	node := mustResolve(t, tree, "dns/server")

	t.Run("too few", func(t *testing.T) {
		out := v.Validate(node, []any{})
		if out.Valid || out.First().Kind != validate.KindCardinality {
			t.Errorf("empty list: valid=%v kind=%q", out.Valid, out.First().Kind)
		}
	})

	t.Run("too many", func(t *testing.T) {
		entries := []any{
			map[string]any{"address": "a"},
			map[string]any{"address": "b"},
			map[string]any{"address": "c"},
			map[string]any{"address": "d"},
		}
		out := v.Validate(node, entries)
		if out.Valid || out.First().Kind != validate.KindCardinality {
			t.Errorf("oversized list: valid=%v kind=%q", out.Valid, out.First().Kind)
		}
	})

	t.Run("min elements enforced when absent from parent", func(t *testing.T) {
		parent := mustResolve(t, tree, "dns")
		out := v.Validate(parent, map[string]any{})
		if out.Valid || out.First().Kind != validate.KindMissingMandatory {
			t.Errorf("absent list: valid=%v kind=%q", out.Valid, out.First().Kind)
		}
	})
}

func TestValidateIdempotent(t *testing.T) {
	tree, v := testFixtures(t)
	node := mustResolve(t, tree, "system")
	payload := map[string]any{"hostname": "cafe01", "cpu-load": "42"}

	first := v.Validate(node, payload)
	second := v.Validate(node, payload)
	if !first.Valid || !second.Valid {
		t.Fatalf("rejected: %v %v", first.Failures, second.Failures)
	}
	if !reflect.DeepEqual(first.Value, second.Value) {
		t.Errorf("re-validation differs: %#v vs %#v", first.Value, second.Value)
	}
}
