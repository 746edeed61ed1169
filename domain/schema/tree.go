package schema

import (
	"fmt"
)

// IdentitySet reports whether an identity name is declared. The identity
// registry satisfies this; Build uses it to reject dangling identityref
// bases at startup.
type IdentitySet interface {
	Has(name string) bool
}

// Tree is the compiled constraint tree. Read-only after Build, safe for
// unbounded concurrent readers.
type Tree struct {
	roots  []*Node
	byPath map[string]*Node
}

// Build compiles a forest of top-level module nodes into a Tree.
// Every inconsistency is a build error: duplicate paths, malformed
// patterns, dangling identity bases, bad cardinality, typed non-leafs.
// Callers must treat a Build error as fatal rather than run with a
// partially consistent schema.
func Build(roots []*Node, identities IdentitySet) (*Tree, error) {
	t := &Tree{
		roots:  roots,
		byPath: make(map[string]*Node),
	}
	for _, root := range roots {
		if err := t.compile(root, "", identities); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) compile(n *Node, parentPath string, identities IdentitySet) error {
	if n.Name == "" {
		return fmt.Errorf("node under %q has empty name", parentPath)
	}
	if parentPath == "" {
		n.path = n.Name
	} else {
		n.path = parentPath + "/" + n.Name
	}

	if _, dup := t.byPath[n.path]; dup {
		return fmt.Errorf("duplicate schema path %q", n.path)
	}
	t.byPath[n.path] = n

	switch n.Kind {
	case KindLeaf:
		if len(n.Children) > 0 {
			return fmt.Errorf("leaf %q has children", n.path)
		}
		if n.Type == nil {
			n.Type = &Type{Kind: TypeOpaque}
		}
		if err := n.Type.compile(); err != nil {
			return fmt.Errorf("leaf %q: %w", n.path, err)
		}
		if n.Type.Kind == TypeIdentityRef {
			if identities == nil || !identities.Has(n.Type.Base) {
				return fmt.Errorf("leaf %q references unknown base identity %q", n.path, n.Type.Base)
			}
		}
	case KindContainer, KindRPC, KindNotification:
		if n.Type != nil {
			return fmt.Errorf("%s %q declares a value type", n.Kind, n.path)
		}
	case KindList:
		if n.Type != nil {
			return fmt.Errorf("list %q declares a value type", n.path)
		}
		if n.MinElements < 0 {
			return fmt.Errorf("list %q has negative min-elements", n.path)
		}
		if n.MaxElements != 0 && n.MaxElements < n.MinElements {
			return fmt.Errorf("list %q has max-elements below min-elements", n.path)
		}
	default:
		return fmt.Errorf("node %q has unknown kind %d", n.path, n.Kind)
	}

	n.byName = make(map[string]*Node, len(n.Children))
	for _, child := range n.Children {
		if _, dup := n.byName[child.Name]; dup {
			return fmt.Errorf("node %q has duplicate child %q", n.path, child.Name)
		}
		n.byName[child.Name] = child
		if err := t.compile(child, n.path, identities); err != nil {
			return err
		}
	}

	// List keys must name direct leaf children.
	if n.Kind == KindList {
		for _, key := range n.Keys {
			child, ok := n.byName[key]
			if !ok {
				return fmt.Errorf("list %q key %q is not a child", n.path, key)
			}
			if child.Kind != KindLeaf {
				return fmt.Errorf("list %q key %q is not a leaf", n.path, key)
			}
		}
	}
	return nil
}

// Resolve looks up the schema node for an absolute path. List-key
// predicates select datastore instances, not schema nodes, so they are
// parsed and then ignored for the lookup itself. Resolution is a pure
// read with no side effects.
func (t *Tree) Resolve(path string) (*Node, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return t.ResolveSteps(steps)
}

// ResolveSteps resolves pre-parsed path steps.
func (t *Tree) ResolveSteps(steps []Step) (*Node, error) {
	node, ok := t.byPath[SchemaPath(steps)]
	if !ok {
		return nil, &NotFoundError{Path: SchemaPath(steps)}
	}
	// Predicates are only valid on list nodes.
	for i, s := range steps {
		if len(s.Keys) == 0 {
			continue
		}
		holder, ok := t.byPath[SchemaPath(steps[:i+1])]
		if !ok || holder.Kind != KindList {
			return nil, fmt.Errorf("segment %q carries keys but is not a list", s.Name)
		}
	}
	return node, nil
}

// Roots returns the top-level module nodes.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// NotFoundError reports an unknown schema path. This error is always safe
// to disclose to callers.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schema path %q not found", e.Path)
}
