package policy_test

import (
	"strings"
	"testing"

	"github.com/artpar/datagate/domain/policy"
)

func TestEmptyPolicyDeniesEverything(t *testing.T) {
	p := policy.Empty()

	paths := []string{"interfaces", "interfaces/interface/mtu", "system/restart"}
	for _, path := range paths {
		for _, op := range []policy.Operation{policy.OpRead, policy.OpWrite, policy.OpExecute} {
			if p.Allows("operator", path, op) {
				t.Errorf("empty policy allowed %s on %q", op, path)
			}
		}
	}
}

func TestAllows(t *testing.T) {
	p, err := policy.Compile([]policy.Rule{
		{Scope: "interfaces", PrincipalClass: "operator",
			Operations: []policy.Operation{policy.OpRead, policy.OpWrite}, Cascade: true},
		{Scope: "system", PrincipalClass: "operator",
			Operations: []policy.Operation{policy.OpRead}},
		{Scope: "system/restart", PrincipalClass: "admin",
			Operations: []policy.Operation{policy.OpExecute}},
		{Scope: "interfaces", PrincipalClass: "monitor",
			Operations: []policy.Operation{policy.OpRead}, Cascade: true},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	tests := []struct {
		name  string
		class string
		path  string
		op    policy.Operation
		want  bool
	}{
		{"cascading grant covers scope itself", "operator", "interfaces", policy.OpWrite, true},
		{"cascading grant covers descendants", "operator", "interfaces/interface/mtu", policy.OpWrite, true},
		{"non-cascading grant covers exact scope", "operator", "system", policy.OpRead, true},
		{"non-cascading grant excludes children", "operator", "system/hostname", policy.OpRead, false},
		{"segment prefix only", "operator", "interfacesx", policy.OpRead, false},
		{"execute distinct from write", "operator", "interfaces", policy.OpExecute, false},
		{"execute granted explicitly", "admin", "system/restart", policy.OpExecute, true},
		{"execute does not imply read", "admin", "system/restart", policy.OpRead, false},
		{"read-only class cannot write", "monitor", "interfaces/interface", policy.OpWrite, false},
		{"unknown class denied", "ghost", "interfaces", policy.OpRead, false},
		{"slash trimming", "operator", "/interfaces/", policy.OpWrite, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Allows(tt.class, tt.path, tt.op); got != tt.want {
				t.Errorf("Allows(%q, %q, %s) = %v, want %v", tt.class, tt.path, tt.op, got, tt.want)
			}
		})
	}
}

func TestCompileMergesRules(t *testing.T) {
	p, err := policy.Compile([]policy.Rule{
		{Scope: "system", PrincipalClass: "operator", Operations: []policy.Operation{policy.OpRead}},
		{Scope: "system", PrincipalClass: "operator", Operations: []policy.Operation{policy.OpWrite}, Cascade: true},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if !p.Allows("operator", "system", policy.OpRead) {
		t.Error("merged grant lost read")
	}
	if !p.Allows("operator", "system", policy.OpWrite) {
		t.Error("merged grant lost write")
	}
	// cascade merged with OR applies to every operation of the pair
	if !p.Allows("operator", "system/hostname", policy.OpRead) {
		t.Error("merged cascade should cover children")
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		rule    policy.Rule
		wantErr string
	}{
		{
			name:    "empty scope",
			rule:    policy.Rule{PrincipalClass: "x", Operations: []policy.Operation{policy.OpRead}},
			wantErr: "empty scope",
		},
		{
			name:    "empty class",
			rule:    policy.Rule{Scope: "m", Operations: []policy.Operation{policy.OpRead}},
			wantErr: "empty principal class",
		},
		{
			name:    "no operations",
			rule:    policy.Rule{Scope: "m", PrincipalClass: "x"},
			wantErr: "grants no operations",
		},
		{
			name:    "unknown operation",
			rule:    policy.Rule{Scope: "m", PrincipalClass: "x", Operations: []policy.Operation{"delete"}},
			wantErr: "unknown operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := policy.Compile([]policy.Rule{tt.rule})
			if err == nil {
				t.Fatal("Compile() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Compile() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
