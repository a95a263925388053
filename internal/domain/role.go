package domain

import (
	"slices"
	"sort"
)

// Role is a normalized, lower-case role name.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleProfessional Role = "professional"
	RoleCustomer     Role = "customer"
)

// RolePriority orders roles when choosing a landing path.
var RolePriority = []Role{RoleAdmin, RoleProfessional, RoleCustomer}

// RoleSet is an unordered set of normalized roles.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from roles, skipping empty names.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	return set
}

// Has reports membership.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// Empty is true for a nil or zero-length set.
func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Ranked lists the set's roles: built-in roles in RolePriority order, then
// any others by name.
func (s RoleSet) Ranked() []Role {
	ranked := make([]Role, 0, len(s))
	for _, r := range RolePriority {
		if s.Has(r) {
			ranked = append(ranked, r)
		}
	}
	for _, name := range s.Names() {
		if r := Role(name); !slices.Contains(RolePriority, r) {
			ranked = append(ranked, r)
		}
	}
	return ranked
}

// Names returns the roles sorted for stable output.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}
