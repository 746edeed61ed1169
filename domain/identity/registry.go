// Package identity provides the identity registry: a DAG of named
// identities with base/derived relations used by identityref-typed leaves.
// The registry is built once at startup and immutable afterwards.
package identity

import (
	"fmt"
)

// Def declares an identity and its base identities. Multiple bases are
// allowed; the resulting relation must form a DAG.
type Def struct {
	Name  string   `yaml:"name" json:"name"`
	Bases []string `yaml:"bases,omitempty" json:"bases,omitempty"`
}

// Registry answers derived-from queries in O(1) via a transitive closure
// bitmask computed at build time. Derivation is reflexive and transitive.
type Registry struct {
	index map[string]int
	names []string

	// closure[i] holds one bit per identity; bit j set means identity i
	// is derived from identity j (including i itself).
	closure [][]uint64
	words   int
}

// BuildRegistry compiles identity definitions into a registry.
// Unknown bases, duplicate names and cycles are build errors.
func BuildRegistry(defs []Def) (*Registry, error) {
	r := &Registry{
		index: make(map[string]int, len(defs)),
		names: make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("identity with empty name")
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate identity %q", d.Name)
		}
		r.index[d.Name] = len(r.names)
		r.names = append(r.names, d.Name)
	}

	bases := make([][]int, len(defs))
	for _, d := range defs {
		i := r.index[d.Name]
		for _, b := range d.Bases {
			j, ok := r.index[b]
			if !ok {
				return nil, fmt.Errorf("identity %q has unknown base %q", d.Name, b)
			}
			bases[i] = append(bases[i], j)
		}
	}

	if err := detectCycle(r.names, bases); err != nil {
		return nil, err
	}

	r.words = (len(r.names) + 63) / 64
	r.closure = make([][]uint64, len(r.names))
	for i := range r.closure {
		r.computeClosure(i, bases)
	}
	return r, nil
}

// computeClosure fills closure[i], reusing already-computed base rows.
// Safe because detectCycle already proved the relation is acyclic.
func (r *Registry) computeClosure(i int, bases [][]int) {
	if r.closure[i] != nil {
		return
	}
	row := make([]uint64, r.words)
	row[i/64] |= 1 << (uint(i) % 64)
	for _, b := range bases[i] {
		r.computeClosure(b, bases)
		for w, bits := range r.closure[b] {
			row[w] |= bits
		}
	}
	r.closure[i] = row
}

// Has reports whether the identity name is declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// DerivedFrom reports whether candidate is base itself or transitively
// derives from it. Unknown names are never derived from anything.
func (r *Registry) DerivedFrom(candidate, base string) bool {
	ci, ok := r.index[candidate]
	if !ok {
		return false
	}
	bi, ok := r.index[base]
	if !ok {
		return false
	}
	return r.closure[ci][bi/64]&(1<<(uint(bi)%64)) != 0
}

// Derived returns all identities derived from base, including base itself.
func (r *Registry) Derived(base string) []string {
	bi, ok := r.index[base]
	if !ok {
		return nil
	}
	var out []string
	for i, name := range r.names {
		if r.closure[i][bi/64]&(1<<(uint(bi)%64)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of declared identities.
func (r *Registry) Len() int {
	return len(r.names)
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

func detectCycle(names []string, bases [][]int) error {
	colors := make([]int, len(names))
	var visit func(int) error
	visit = func(i int) error {
		switch colors[i] {
		case colorGray:
			return fmt.Errorf("identity cycle through %q", names[i])
		case colorBlack:
			return nil
		}
		colors[i] = colorGray
		for _, b := range bases[i] {
			if err := visit(b); err != nil {
				return err
			}
		}
		colors[i] = colorBlack
		return nil
	}
	for i := range names {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}
