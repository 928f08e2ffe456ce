package cluster

import (
	"fmt"
	"strings"
)

// Role is the capability level of a member inside a cluster. The ordering
// of the named roles is interpreted by upper layers, not by this package.
type Role int

const (
	RoleInvalid Role = iota // Reserved for error propagation
	RoleNobody
	RoleGuest
	RoleUser
	RoleRoot
	RoleDefault // Resolves to the cluster's default role
)

var roleNames = map[Role]string{
	RoleInvalid: "INVALID",
	RoleNobody:  "NOBODY",
	RoleGuest:   "GUEST",
	RoleUser:    "USER",
	RoleRoot:    "ROOT",
	RoleDefault: "DEFAULT",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r may be stored on a cluster or member.
func (r Role) Valid() bool {
	return r > RoleInvalid && r <= RoleDefault
}

// ParseRole converts a role name, case-insensitive, to a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for role, n := range roleNames {
		if n == name && role != RoleInvalid {
			return role, nil
		}
	}
	return RoleInvalid, fmt.Errorf("unknown role %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
