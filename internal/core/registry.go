package core

import "strings"

// Registry owns the valid category names, partitioned by transaction kind.
// Names are kept in insertion order, trimmed, unique per kind and never
// removed.
type Registry struct {
	names map[Kind][]string
}

// NewRegistry seeds the registry. Seed values are trimmed and deduplicated
// while preserving input order, the same way the seed files are read.
func NewRegistry(expense, income []string) *Registry {
	return &Registry{names: map[Kind][]string{
		Expense: dedupe(expense),
		Income:  dedupe(income),
	}}
}

// List returns the current names for the given kind, in insertion order.
func (r *Registry) List(k Kind) []string {
	return append([]string(nil), r.names[k]...)
}

// Add trims the name and appends it to the kind's set. It fails with
// ErrEmptyName on a blank result and ErrDuplicateCategory when the exact
// name is already present; the registry is unchanged on failure.
func (r *Registry) Add(k Kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if r.Contains(k, name) {
		return name, ErrDuplicateCategory
	}
	r.names[k] = append(r.names[k], name)
	return name, nil
}

// Contains reports whether the exact (post-trim) name exists for the kind.
func (r *Registry) Contains(k Kind, name string) bool {
	for _, n := range r.names[k] {
		if n == name {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
