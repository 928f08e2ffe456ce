package cluster

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"globaldb/pkg/identifier"
	"globaldb/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(RegistryOptions{
		Owner:         "node-local",
		GroupCacheTTL: time.Minute,
		Logger:        zap.NewNop(),
	})
}

func walletConfig() Config {
	return Config{
		Mnemonic:    "wallet",
		ID:          identifier.Compose(1, 1),
		GroupMask:   "wallet.*",
		TTL:         time.Hour,
		DefaultRole: RoleGuest,
		Type:        TypeAutonomic,
	}
}

func TestRegistry_Create(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Create(walletConfig())
	require.NoError(t, err)
	assert.Equal(t, "wallet", c.Mnemonic())
	assert.Equal(t, StateCreated, c.State())
	assert.Equal(t, 1, r.Len())
	assert.Same(t, c, r.ClusterByID(identifier.Compose(1, 1)))
	assert.Same(t, c, r.ClusterByMnemonic("wallet"))
	assert.Nil(t, r.ClusterByMnemonic("missing"))
}

func TestRegistry_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid role", func(c *Config) { c.DefaultRole = RoleInvalid }},
		{"out of range role", func(c *Config) { c.DefaultRole = Role(99) }},
		{"self-referencing default role", func(c *Config) { c.DefaultRole = RoleDefault }},
		{"invalid type", func(c *Config) { c.Type = TypeInvalid }},
		{"empty mask", func(c *Config) { c.GroupMask = "" }},
		{"unsupported mask", func(c *Config) { c.GroupMask = "wallet.[ab]" }},
		{"non utf-8 mask", func(c *Config) { c.GroupMask = "wallet.\xff*" }},
		{"negative ttl", func(c *Config) { c.TTL = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(t)
			cfg := walletConfig()
			tt.mutate(&cfg)

			c, err := r.Create(cfg)
			require.Error(t, err)
			assert.Nil(t, c)

			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, cfg.GroupMask, cerr.Mask)
			assert.Contains(t, err.Error(), fmt.Sprintf("%q", cfg.GroupMask))
			assert.Equal(t, 0, r.Len())
		})
	}
}

func TestRegistry_OverlappingMasks(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(walletConfig())
	require.NoError(t, err)

	overlapping := []string{"wallet.*", "wallet.balance", "*.balance", "*"}
	for i, mask := range overlapping {
		cfg := walletConfig()
		cfg.Mnemonic = fmt.Sprintf("other-%d", i)
		cfg.ID = identifier.Compose(2, uint64(i))
		cfg.GroupMask = mask

		_, err := r.Create(cfg)
		var cerr *ConfigurationError
		require.True(t, errors.As(err, &cerr), "mask %q should collide", mask)
		assert.Contains(t, err.Error(), mask)
	}

	cfg := walletConfig()
	cfg.Mnemonic = "votes"
	cfg.ID = identifier.Compose(3, 1)
	cfg.GroupMask = "votes.*"
	_, err = r.Create(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_DuplicateIdentifier(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create(walletConfig())
	require.NoError(t, err)

	cfg := walletConfig()
	cfg.GroupMask = "votes.*"
	_, err = r.Create(cfg)

	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Reason, "identifier")
}

func TestRegistry_ClusterByGroup(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Create(walletConfig())
	require.NoError(t, err)

	assert.Same(t, c, r.ClusterByGroup("wallet.balance"))
	assert.Same(t, c, r.ClusterByGroup("wallet.balance"), "cached lookup")
	assert.Nil(t, r.ClusterByGroup("other.table"))
	assert.Nil(t, r.ClusterByGroup("other.table"), "cached miss")

	// A cached miss must not hide a cluster created later.
	cfg := walletConfig()
	cfg.Mnemonic = "other"
	cfg.ID = identifier.Compose(9, 9)
	cfg.GroupMask = "other.*"
	other, err := r.Create(cfg)
	require.NoError(t, err)
	assert.Same(t, other, r.ClusterByGroup("other.table"))
}

func TestRegistry_ClusterByGroupWithoutCache(t *testing.T) {
	r := NewRegistry(RegistryOptions{})

	c, err := r.Create(walletConfig())
	require.NoError(t, err)
	assert.Same(t, c, r.ClusterByGroup("wallet.x"))
	assert.Nil(t, r.ClusterByGroup("nope"))
}

func TestRegistry_Activate(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Create(walletConfig())
	require.NoError(t, err)
	assert.Equal(t, StateCreated, c.State())

	assert.Equal(t, 1, r.Activate())
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, 0, r.Activate(), "already active")

	cfg := walletConfig()
	cfg.Mnemonic = "late"
	cfg.ID = identifier.Compose(5, 5)
	cfg.GroupMask = "late.*"
	late, err := r.Create(cfg)
	require.NoError(t, err)
	assert.Equal(t, StateActive, late.State())
}

func TestRegistry_Teardown(t *testing.T) {
	r := newTestRegistry(t)

	c, err := r.Create(walletConfig())
	require.NoError(t, err)
	r.Activate()

	_, err = c.MemberAdd("node-a", RoleUser)
	require.NoError(t, err)
	sub, err := c.NotifyAdd(func(*Cluster, Mutation, interface{}) error { return nil }, nil)
	require.NoError(t, err)

	r.Teardown()
	r.Teardown()

	assert.Equal(t, StateTornDown, c.State())
	assert.Equal(t, 0, c.MemberCount())
	assert.Empty(t, c.Subscriptions())
	assert.False(t, sub.Active())
	assert.Nil(t, r.ClusterByGroup("wallet.balance"))
	assert.Equal(t, 0, r.Len())

	_, err = r.Create(walletConfig())
	assert.ErrorIs(t, err, ErrTornDown)
	_, err = c.MemberAdd("node-b", RoleUser)
	assert.ErrorIs(t, err, ErrTornDown)
	_, err = c.NotifyAdd(func(*Cluster, Mutation, interface{}) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrTornDown)
	assert.Equal(t, 0, r.Activate())
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	r := newTestRegistry(t)

	// All goroutines race for the same mask; exactly one may win.
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := walletConfig()
			cfg.ID = identifier.Compose(100, uint64(i))
			if _, err := r.Create(cfg); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRegistry(RegistryOptions{Metrics: m})

	c, err := r.Create(walletConfig())
	require.NoError(t, err)
	_, err = c.MemberAdd("node-a", RoleUser)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClustersTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Members.WithLabelValues("wallet")))

	r.Teardown()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ClustersTotal))
}
