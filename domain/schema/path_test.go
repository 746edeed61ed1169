package schema

import (
	"testing"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		want     []Step
		wantErr  bool
	}{
		{
			name: "plain path",
			path: "interfaces/interface/mtu",
			want: []Step{{Name: "interfaces"}, {Name: "interface"}, {Name: "mtu"}},
		},
		{
			name: "leading and trailing slashes",
			path: "/system/hostname/",
			want: []Step{{Name: "system"}, {Name: "hostname"}},
		},
		{
			name: "single predicate",
			path: "interfaces/interface[name='eth0']/mtu",
			want: []Step{
				{Name: "interfaces"},
				{Name: "interface", Keys: map[string]string{"name": "eth0"}},
				{Name: "mtu"},
			},
		},
		{
			name: "compound key",
			path: "routes/route[prefix='10.0.0.0/8'][table='main']",
			want: []Step{
				{Name: "routes"},
				{Name: "route", Keys: map[string]string{"prefix": "10.0.0.0/8", "table": "main"}},
			},
		},
		{
			name: "slash inside quoted value",
			path: "fs/mount[point='/var/log']",
			want: []Step{
				{Name: "fs"},
				{Name: "mount", Keys: map[string]string{"point": "/var/log"}},
			},
		},
		{
			name: "bracket inside quoted value",
			path: "acl/rule[match='tcp[syn]']/action",
			want: []Step{
				{Name: "acl"},
				{Name: "rule", Keys: map[string]string{"match": "tcp[syn]"}},
				{Name: "action"},
			},
		},
		{name: "empty path", path: "", wantErr: true},
		{name: "only slashes", path: "///", wantErr: true},
		{name: "empty segment", path: "a//b", wantErr: true},
		{name: "unterminated predicate", path: "l[name='x", wantErr: true},
		{name: "predicate without name", path: "[name='x']", wantErr: true},
		{name: "unquoted value", path: "l[name=eth0]", wantErr: true},
		{name: "repeated key", path: "l[k='a'][k='b']", wantErr: true},
		{name: "stray close bracket", path: "a]b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := ParsePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePath(%q) expected error", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath(%q) error = %v", tt.path, err)
			}
			if len(steps) != len(tt.want) {
				t.Fatalf("ParsePath(%q) = %d steps, want %d", tt.path, len(steps), len(tt.want))
			}
			for i, w := range tt.want {
				if steps[i].Name != w.Name {
					t.Errorf("step %d name = %q, want %q", i, steps[i].Name, w.Name)
				}
				if len(steps[i].Keys) != len(w.Keys) {
					t.Errorf("step %d keys = %v, want %v", i, steps[i].Keys, w.Keys)
					continue
				}
				for k, v := range w.Keys {
					if steps[i].Keys[k] != v {
						t.Errorf("step %d key %q = %q, want %q", i, k, steps[i].Keys[k], v)
					}
				}
			}
		})
	}
}

func TestSchemaPath(t *testing.T) {
	steps, err := ParsePath("interfaces/interface[name='eth0']/mtu")
	if err != nil {
		t.Fatalf("ParsePath() error = %v", err)
	}
	if got := SchemaPath(steps); got != "interfaces/interface/mtu" {
		t.Errorf("SchemaPath() = %q, want interfaces/interface/mtu", got)
	}
}
