package permission

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned by ParseRole for names outside the role enum.
var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of user roles. The zero value is not a valid role.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleRoot
	RoleGeneralManager
	RoleManager
	RoleCustomer
	RoleWaiter
	RoleCook
	RoleBarman
	RoleCashRegister

	roleCount
)

var roleNames = [roleCount]string{
	RoleUnknown:        "",
	RoleRoot:           "ROOT",
	RoleGeneralManager: "GENERAL_MANAGER",
	RoleManager:        "MANAGER",
	RoleCustomer:       "CUSTOMER",
	RoleWaiter:         "WAITER",
	RoleCook:           "COOK",
	RoleBarman:         "BARMAN",
	RoleCashRegister:   "CASH_REGISTER",
}

// AllRoles returns every valid role in declaration order.
func AllRoles() []Role {
	out := make([]Role, 0, roleCount-1)
	for r := RoleRoot; r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRole maps a wire name (e.g. "GENERAL_MANAGER") to its Role.
// Matching is exact; role names are case-sensitive.
func ParseRole(name string) (Role, error) {
	for r := RoleRoot; r < roleCount; r++ {
		if roleNames[r] == name {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, name)
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r > RoleUnknown && r < roleCount
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return roleNames[r]
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Outranks reports whether r is strictly more senior than o. ROOT is above
// GENERAL_MANAGER, which is above MANAGER; every other role sits at the
// bottom together.
func (r Role) Outranks(o Role) bool {
	return r.seniority() > o.seniority()
}

func (r Role) seniority() int {
	switch r {
	case RoleRoot:
		return 3
	case RoleGeneralManager:
		return 2
	case RoleManager:
		return 1
	default:
		return 0
	}
}
