// Package roles defines the registry of valid role names that role
// mutations are checked against.
package roles

import (
	"slices"
	"strings"
)

// Registry is the source of truth for valid role names.
type Registry interface {
	Contains(name string) bool
	List() []string
}

// Static is an immutable Registry built from a fixed list.
type Static struct {
	names []string
	set   map[string]struct{}
}

// NewStatic builds a registry from names. Names are trimmed; blanks and
// duplicates are dropped and first-seen order is kept.
func NewStatic(names ...string) *Static {
	r := &Static{set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.set[name]; ok {
			continue
		}
		r.set[name] = struct{}{}
		r.names = append(r.names, name)
	}
	return r
}

// Parse builds a registry from a comma-separated list such as "admin,user".
func Parse(list string) *Static {
	return NewStatic(strings.Split(list, ",")...)
}

// Contains reports whether name is a registered role. Matching is exact
// and case-sensitive.
func (r *Static) Contains(name string) bool {
	_, ok := r.set[name]
	return ok
}

// List returns a copy of the registered role names.
func (r *Static) List() []string {
	return slices.Clone(r.names)
}
