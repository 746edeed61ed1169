package config

import (
	"fmt"
	"os"

	"github.com/artpar/datagate/domain/identity"
	"github.com/artpar/datagate/domain/schema"
	"gopkg.in/yaml.v3"
)

// Artifact is the parsed form of a compiled schema artifact file. Its
// source textual format before compilation is an external concern; this
// is the exchange shape any schema compiler must be able to produce.
type Artifact struct {
	Identities []identity.Def `yaml:"identities"`
	Modules    []NodeSpec     `yaml:"modules"`
}

// NodeSpec declares one schema node in the artifact.
type NodeSpec struct {
	Name        string     `yaml:"name"`
	Kind        string     `yaml:"kind"`
	Type        *TypeSpec  `yaml:"type,omitempty"`
	Mandatory   bool       `yaml:"mandatory,omitempty"`
	MinElements int        `yaml:"min_elements,omitempty"`
	MaxElements int        `yaml:"max_elements,omitempty"`
	Keys        []string   `yaml:"keys,omitempty"`
	Children    []NodeSpec `yaml:"children,omitempty"`
}

// TypeSpec declares a leaf type. At most one constraint may be set; a
// leaf without any is opaque and will be flagged as unconstrained by the
// validator.
type TypeSpec struct {
	Pattern     string     `yaml:"pattern,omitempty"`
	Range       *RangeSpec `yaml:"range,omitempty"`
	Enum        []string   `yaml:"enum,omitempty"`
	IdentityRef string     `yaml:"identityref,omitempty"`
	Boolean     bool       `yaml:"boolean,omitempty"`
}

// RangeSpec bounds an integer leaf.
type RangeSpec struct {
	Min   int64 `yaml:"min"`
	Max   int64 `yaml:"max"`
	Width int   `yaml:"width,omitempty"`
}

// LoadArtifact reads a schema artifact file and builds the constraint
// tree and identity registry. Any inconsistency is an error; callers must
// treat it as fatal at startup.
func LoadArtifact(path string) (*schema.Tree, *identity.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact builds the constraint tree and identity registry from
// artifact bytes.
func ParseArtifact(data []byte) (*schema.Tree, *identity.Registry, error) {
	var art Artifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, nil, fmt.Errorf("parse schema artifact: %w", err)
	}

	registry, err := identity.BuildRegistry(art.Identities)
	if err != nil {
		return nil, nil, fmt.Errorf("build identity registry: %w", err)
	}

	roots := make([]*schema.Node, 0, len(art.Modules))
	for _, spec := range art.Modules {
		node, err := buildNode(spec)
		if err != nil {
			return nil, nil, err
		}
		roots = append(roots, node)
	}

	tree, err := schema.Build(roots, registry)
	if err != nil {
		return nil, nil, fmt.Errorf("build constraint tree: %w", err)
	}
	return tree, registry, nil
}

func buildNode(spec NodeSpec) (*schema.Node, error) {
	kind, err := parseKind(spec.Kind)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", spec.Name, err)
	}

	node := &schema.Node{
		Name:        spec.Name,
		Kind:        kind,
		Mandatory:   spec.Mandatory,
		MinElements: spec.MinElements,
		MaxElements: spec.MaxElements,
		Keys:        spec.Keys,
	}

	if spec.Type != nil {
		t, err := buildType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", spec.Name, err)
		}
		node.Type = t
	}

	for _, childSpec := range spec.Children {
		child, err := buildNode(childSpec)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func buildType(spec *TypeSpec) (*schema.Type, error) {
	declared := 0
	t := &schema.Type{Kind: schema.TypeOpaque}

	if spec.Pattern != "" {
		declared++
		t = &schema.Type{Kind: schema.TypePattern, Pattern: spec.Pattern}
	}
	if spec.Range != nil {
		declared++
		t = &schema.Type{
			Kind:  schema.TypeRange,
			Min:   spec.Range.Min,
			Max:   spec.Range.Max,
			Width: spec.Range.Width,
		}
	}
	if len(spec.Enum) > 0 {
		declared++
		t = &schema.Type{Kind: schema.TypeEnum, Enum: spec.Enum}
	}
	if spec.IdentityRef != "" {
		declared++
		t = &schema.Type{Kind: schema.TypeIdentityRef, Base: spec.IdentityRef}
	}
	if spec.Boolean {
		declared++
		t = &schema.Type{Kind: schema.TypeBoolean}
	}

	if declared > 1 {
		return nil, fmt.Errorf("type declares %d constraint variants, at most one allowed", declared)
	}
	return t, nil
}

func parseKind(kind string) (schema.NodeKind, error) {
	switch kind {
	case "leaf":
		return schema.KindLeaf, nil
	case "container":
		return schema.KindContainer, nil
	case "list":
		return schema.KindList, nil
	case "rpc":
		return schema.KindRPC, nil
	case "notification":
		return schema.KindNotification, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", kind)
	}
}
