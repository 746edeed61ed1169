// Package schema provides the compiled constraint tree consumed by the
// validation pipeline. Trees are built once at startup from a compiled
// schema artifact and are immutable afterwards, so lookups need no locking.
package schema

// NodeKind identifies the variant of a schema node.
type NodeKind int

const (
	// KindLeaf holds a single typed value.
	KindLeaf NodeKind = iota

	// KindContainer groups named child nodes.
	KindContainer

	// KindList holds repeated entries keyed by one or more child leaves.
	KindList

	// KindRPC declares a remotely invocable operation with a typed input.
	KindRPC

	// KindNotification declares an event payload delivered to consumers.
	KindNotification
)

// String returns the node kind name.
func (k NodeKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindContainer:
		return "container"
	case KindList:
		return "list"
	case KindRPC:
		return "rpc"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Node is a single node of the constraint tree. Nodes are owned exclusively
// by the Tree that built them and must not be mutated after Build returns.
type Node struct {
	// Name is the path segment for this node.
	Name string

	// Kind selects the node variant.
	Kind NodeKind

	// Type is the declared value type. Set only for KindLeaf.
	Type *Type

	// Children are the ordered child nodes. Set for KindContainer, KindList,
	// KindRPC (the RPC input) and KindNotification (the event payload).
	Children []*Node

	// Mandatory marks a child that must be present in its parent.
	Mandatory bool

	// MinElements and MaxElements bound list occurrence counts.
	// MaxElements == 0 means unbounded. Only meaningful for KindList.
	MinElements int
	MaxElements int

	// Keys names the child leaves that together identify a list entry.
	// Only meaningful for KindList.
	Keys []string

	// path is the absolute slash path, filled in by Build.
	path string

	// children index by name, filled in by Build.
	byName map[string]*Node
}

// Path returns the absolute slash-delimited path of the node.
func (n *Node) Path() string {
	return n.path
}

// Module returns the top-level namespace the node belongs to.
func (n *Node) Module() string {
	p := n.path
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return p
}

// Child returns the named child node, if any.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.byName[name]
	return c, ok
}
