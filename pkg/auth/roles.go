package auth

import (
	"encoding/json"
	"fmt"
)

// Role is the closed set of account roles stored in users.role.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Capability names an action guarded by role.
type Capability int

const (
	CapViewOwnEnrollments Capability = iota + 1
	CapManageOwnCourses
	CapManageUsers
	CapManageCatalog
	CapViewReports
	CapChangeRoles
)

var capabilities = map[Role]map[Capability]bool{
	RoleStudent: {
		CapViewOwnEnrollments: true,
	},
	RoleInstructor: {
		CapManageOwnCourses: true,
	},
	RoleAdmin: {
		CapViewOwnEnrollments: true,
		CapManageOwnCourses:   true,
		CapManageUsers:        true,
		CapManageCatalog:      true,
		CapViewReports:        true,
		CapChangeRoles:        true,
	},
}

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Can reports whether the role grants c. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

func (r Role) String() string { return string(r) }

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan lets pgx read users.role straight into a Role.
func (r *Role) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
