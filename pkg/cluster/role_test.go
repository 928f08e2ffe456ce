package cluster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{RoleNobody, RoleGuest, RoleUser, RoleRoot, RoleDefault} {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
		assert.True(t, r.Valid())
	}

	parsed, err := ParseRole(" user ")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, parsed)

	_, err = ParseRole("INVALID")
	assert.Error(t, err)
	_, err = ParseRole("admin")
	assert.Error(t, err)

	assert.False(t, RoleInvalid.Valid())
	assert.False(t, Role(42).Valid())
	assert.Equal(t, "Role(42)", Role(42).String())
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{TypeEmbedded, TypeAutonomic, TypeIsolated, TypeVirtual} {
		parsed, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}

	_, err := ParseType("invalid")
	assert.Error(t, err)
	assert.False(t, TypeInvalid.Valid())
}

func TestRoleJSON(t *testing.T) {
	var v struct {
		Role Role `json:"role"`
		Type Type `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"root","type":"virtual"}`), &v))
	assert.Equal(t, RoleRoot, v.Role)
	assert.Equal(t, TypeVirtual, v.Type)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"ROOT","type":"VIRTUAL"}`, string(data))
}

func TestNewMutation(t *testing.T) {
	buf := []byte("hello")
	m := NewMutation("wallet.balance", "alice", buf, OpPut)
	buf[0] = 'j'
	assert.Equal(t, []byte("hello"), m.Value, "mutation must own its value")
	assert.True(t, m.HasValue())

	empty := NewMutation("wallet.balance", "alice", nil, OpPut)
	assert.True(t, empty.HasValue())
	assert.Len(t, empty.Value, 0)

	del := NewMutation("wallet.balance", "alice", []byte("ignored"), OpDelete)
	assert.False(t, del.HasValue())
	assert.Nil(t, del.Value)

	c := m.Clone()
	c.Value[0] = 'x'
	assert.Equal(t, []byte("hello"), m.Value)

	op, err := ParseOp("delete")
	require.NoError(t, err)
	assert.Equal(t, OpDelete, op)
	_, err = ParseOp("merge")
	assert.Error(t, err)
}
