package cluster

import (
	"fmt"
	"strings"
)

// Type describes how the link layer treats a cluster's broadcast traffic.
type Type int

const (
	TypeInvalid Type = iota
	TypeEmbedded
	TypeAutonomic
	TypeIsolated
	TypeVirtual
)

var typeNames = map[Type]string{
	TypeInvalid:   "INVALID",
	TypeEmbedded:  "EMBEDDED",
	TypeAutonomic: "AUTONOMIC",
	TypeIsolated:  "ISOLATED",
	TypeVirtual:   "VIRTUAL",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t names a usable cluster type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeVirtual
}

// ParseType converts a type name, case-insensitive, to a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for typ, n := range typeNames {
		if n == name && typ != TypeInvalid {
			return typ, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown cluster type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	typ, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = typ
	return nil
}

// State is the lifecycle position of a cluster.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateActive:
		return "ACTIVE"
	case StateTornDown:
		return "TORN_DOWN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
