package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchMask(t *testing.T) {
	tests := []struct {
		mask  string
		group string
		want  bool
	}{
		{"wallet.*", "wallet.balance", true},
		{"wallet.*", "wallet.", true},
		{"wallet.*", "wallet", false},
		{"wallet.*", "other.table", false},
		{"wallet.*", "wallet.balance.history", true},
		{"*.balance", "wallet.balance", true},
		{"wallet.?", "wallet.a", true},
		{"wallet.?", "wallet.ab", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
		{"*", "", true},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		{"wallet.?", "wallet.é", true},
		{"wallet.??", "wallet.é", false},
		{"кошелёк.*", "кошелёк.баланс", true},
		{"*.é", "wallet.é", true},
	}

	for _, tt := range tests {
		t.Run(tt.mask+"/"+tt.group, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchMask(tt.mask, tt.group))
		})
	}
}

func TestMasksOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"wallet.*", "wallet.*", true},
		{"wallet.*", "wallet.balance", true},
		{"wallet.*", "*.balance", true},
		{"wallet.*", "other.*", false},
		{"*.x", "y.*", true},
		{"a?c", "abc", true},
		{"a?c", "ab", false},
		{"*", "anything", true},
		{"votes.*", "vote.*", false},
		{"a*", "b*", false},
		{"*a", "*b", false},
		{"ab", "a", false},
		{"wallet.?", "wallet.é", true},
		{"wallet.??", "wallet.é", false},
		{"wallet.??", "wallet.?", false},
		{"*é", "*e", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, MasksOverlap(tt.a, tt.b))
			assert.Equal(t, tt.want, MasksOverlap(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestValidateMask(t *testing.T) {
	assert.NoError(t, ValidateMask("wallet.*"))
	assert.Error(t, ValidateMask(""))
	assert.Error(t, ValidateMask("wallet.[ab]"))
	assert.Error(t, ValidateMask(`wallet\.x`))
	assert.Error(t, ValidateMask("wallet.\xff"))
}
