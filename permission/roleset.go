package permission

import "strings"

// RoleSet is an immutable set of roles admitted by a route. The zero value
// admits nobody.
type RoleSet struct {
	mask Mask64
}

// Roles returns a set admitting exactly the given roles. Invalid roles are
// ignored.
func Roles(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.Valid() {
			s.mask.Set(int(r))
		}
	}
	return s
}

// AnyRole returns the sentinel set admitting every authenticated role.
func AnyRole() RoleSet {
	var s RoleSet
	s.mask.Set(anyBit)
	return s
}

// IsAny reports whether s is the any-role sentinel.
func (s RoleSet) IsAny() bool {
	return s.mask.Raw()&(1<<anyBit) != 0
}

// Admits reports whether an identity holding role r passes this set.
// An invalid role is never admitted, not even by the sentinel.
func (s RoleSet) Admits(r Role) bool {
	switch {
	case !r.Valid():
		return false
	case s.IsAny():
		return true
	default:
		return s.mask.Has(int(r))
	}
}

// Members lists the explicitly admitted roles, or every role for the sentinel.
func (s RoleSet) Members() []Role {
	out := make([]Role, 0, roleCount-1)
	for _, r := range AllRoles() {
		if s.Admits(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	if s.IsAny() {
		return "ANY"
	}
	members := s.Members()
	names := make([]string, len(members))
	for i, r := range members {
		names[i] = r.String()
	}
	return "[" + strings.Join(names, ",") + "]"
}
