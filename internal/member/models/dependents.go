package models

import "strings"

// Dependent is a named relation attached to a member. Dependents cannot log in.
type Dependent struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// AddDependent returns a copy of m with the dependent appended. Blank name or
// relationship (after trimming) is silently ignored and the copy is unchanged.
func AddDependent(m *Member, name, relationship string) *Member {
	out := m.Clone()
	name = strings.TrimSpace(name)
	relationship = strings.TrimSpace(relationship)
	if name == "" || relationship == "" {
		return out
	}
	out.Dependents = append(out.Dependents, Dependent{Name: name, Relationship: relationship})
	return out
}

// RemoveDependent returns a copy of m without the dependent at index. An index
// outside the sequence leaves the copy unchanged. The result must be persisted
// explicitly to take effect.
func RemoveDependent(m *Member, index int) *Member {
	out := m.Clone()
	if index < 0 || index >= len(out.Dependents) {
		return out
	}
	deps := make([]Dependent, 0, len(out.Dependents)-1)
	deps = append(deps, out.Dependents[:index]...)
	deps = append(deps, out.Dependents[index+1:]...)
	out.Dependents = deps
	return out
}

// NormalizeDependents trims entries and drops incomplete ones, applying the
// same rule as AddDependent to a whole sequence. Never returns nil.
func NormalizeDependents(deps []Dependent) []Dependent {
	out := make([]Dependent, 0, len(deps))
	for _, d := range deps {
		name := strings.TrimSpace(d.Name)
		rel := strings.TrimSpace(d.Relationship)
		if name == "" || rel == "" {
			continue
		}
		out = append(out, Dependent{Name: name, Relationship: rel})
	}
	return out
}
