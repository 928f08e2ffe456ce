package cluster

import (
	"bytes"
	"fmt"
	"strings"
)

// Op is the kind of store mutation.
type Op int

const (
	OpPut Op = iota + 1
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpPut:
		return "PUT"
	case OpDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp converts "PUT" or "DELETE", case-insensitive, to an Op.
func ParseOp(s string) (Op, error) {
	switch strings.ToUpper(s) {
	case "PUT":
		return OpPut, nil
	case "DELETE":
		return OpDelete, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// Mutation is a single put or delete applied to a storage group.
// Value is nil for deletes.
type Mutation struct {
	Group string
	Key   string
	Value []byte
	Op    Op
}

// NewMutation returns a mutation that owns its value, so the caller may
// reuse its buffer as soon as this returns.
func NewMutation(group, key string, value []byte, op Op) Mutation {
	m := Mutation{Group: group, Key: key, Op: op}
	if op == OpPut {
		m.Value = bytes.Clone(value)
		if m.Value == nil {
			m.Value = []byte{}
		}
	}
	return m
}

// HasValue reports whether a value is present.
func (m Mutation) HasValue() bool {
	return m.Value != nil
}

// Clone returns a deep copy of m.
func (m Mutation) Clone() Mutation {
	c := m
	if m.Value != nil {
		c.Value = append([]byte{}, m.Value...)
	}
	return c
}
