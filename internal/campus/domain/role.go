package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleMentor  Role = "MENTOR"
)

// Roles lists the selectable roles in display order.
var Roles = []Role{RoleStudent, RoleMentor}

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleMentor
}

// Label is the human readable name shown in forms.
func (r Role) Label() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleMentor:
		return "Mentor"
	default:
		return string(r)
	}
}

// ParseRole accepts a role value in any case. Empty input means the default
// role.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleStudent, nil
	}
	r := Role(strings.ToUpper(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
