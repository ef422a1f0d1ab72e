package rbac

import "sort"

// PermissionSet is an effective permission set resolved for one
// identity. Matching is exact: no wildcards and no implied actions
// (update never implies view). The zero value is an empty set and
// denies everything.
type PermissionSet struct {
	members map[string]Permission
}

// NewPermissionSet builds a set from resolved permissions
func NewPermissionSet(perms []Permission) PermissionSet {
	members := make(map[string]Permission, len(perms))
	for _, p := range perms {
		members[p.Key()] = p
	}
	return PermissionSet{members: members}
}

// EmptyPermissionSet returns a set that denies everything. Used as the
// fail-closed fallback when resolution fails.
func EmptyPermissionSet() PermissionSet {
	return PermissionSet{}
}

// Has reports whether the exact (resource, action) pair is present
func (s PermissionSet) Has(resource Resource, action Action) bool {
	if s.members == nil {
		return false
	}
	_, ok := s.members[Permission{Resource: resource, Action: action}.Key()]
	return ok
}

// HasAny reports whether at least one of the checks is present.
// False for an empty check list.
func (s PermissionSet) HasAny(checks ...Permission) bool {
	for _, c := range checks {
		if s.Has(c.Resource, c.Action) {
			return true
		}
	}
	return false
}

// HasAll reports whether every check is present. Vacuously true for an
// empty check list.
func (s PermissionSet) HasAll(checks ...Permission) bool {
	for _, c := range checks {
		if !s.Has(c.Resource, c.Action) {
			return false
		}
	}
	return true
}

// Len returns the number of permissions in the set
func (s PermissionSet) Len() int {
	return len(s.members)
}

// List returns the members sorted by resource then action
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s.members))
	for _, p := range s.members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}
