package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of directory roles an employee can hold.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Roles lists every valid role, in ascending order of privilege.
var Roles = []Role{RoleEmployee, RoleManager, RoleAdmin}

// ParseRole converts a string into a Role, rejecting anything outside the enum.
// Matching is exact: "Admin" is not a valid role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("invalid role %q: must be one of %s", s, strings.Join(roleNames(), ", "))
	}
}

func (r Role) String() string {
	return string(r)
}

func roleNames() []string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return names
}
