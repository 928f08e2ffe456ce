package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "node_address": "10.0.0.1:7000",
  "dispatcher": {"workers": 8, "queue_size": 16, "overflow": "block", "drain_timeout": "2s"},
  "registry": {"group_cache_ttl": "0s"},
  "storage": {"max_value_size": "64KiB"},
  "networks": [1, 2],
  "clusters": [
    {
      "mnemonic": "wallet",
      "network_id": 1,
      "service_id": 7,
      "group_mask": "wallet.*",
      "ttl": "1h",
      "owner_root_access": true,
      "default_role": "user",
      "type": "isolated",
      "members": [{"address": "10.0.0.2:7000", "role": "guest"}],
      "network": 1
    }
  ]
}`

const yamlConfig = `
node_address: 10.0.0.1:7000
dispatcher:
  workers: 2
  overflow: drop-oldest
clusters:
  - mnemonic: votes
    id: 0000000000000001000000000000000a
    group_mask: votes.?
    ttl: 30s
    default_role: guest
    type: embedded
`

const tomlConfig = `
node_address = "10.0.0.1:7000"

[admin]
address = ":17400"

[[clusters]]
mnemonic = "chat"
group_mask = "chat.*"
default_role = "user"
type = "virtual"
`

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func TestLoadConfigJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/globaldb.json", jsonConfig)

	cfg, err := LoadConfig(fs, "/etc/globaldb.json")
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:7000", cfg.NodeAddress)
	assert.Equal(t, 8, cfg.Dispatcher.Workers)
	assert.Equal(t, 16, cfg.Dispatcher.QueueSize)
	assert.Equal(t, "block", cfg.Dispatcher.Overflow)
	assert.Equal(t, 2*time.Second, cfg.Dispatcher.DrainTimeout.Duration)
	require.NotNil(t, cfg.Registry.GroupCacheTTL)
	assert.Zero(t, cfg.Registry.GroupCacheTTL.Duration, "explicit zero disables the cache")
	assert.Equal(t, []uint64{1, 2}, cfg.Networks)

	require.Len(t, cfg.Clusters, 1)
	c := cfg.Clusters[0]
	assert.Equal(t, "wallet", c.Mnemonic)
	require.NotNil(t, c.NetworkID)
	assert.Equal(t, uint64(7), *c.ServiceID)
	assert.Equal(t, time.Hour, c.TTL.Duration)
	assert.True(t, c.OwnerRootAccess)
	assert.Equal(t, "guest", c.Members[0].Role)
	require.NotNil(t, c.Network)
	assert.Equal(t, uint64(1), *c.Network)

	assert.Equal(t, DefaultAdminAddress, cfg.Admin.Address)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, ByteSize(64*KiB), cfg.Storage.MaxValueSize)
}

func TestLoadConfigYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "globaldb.yaml", yamlConfig)

	cfg, err := LoadConfig(fs, "globaldb.yaml")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Dispatcher.Workers)
	assert.Equal(t, DefaultQueueSize, cfg.Dispatcher.QueueSize)
	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, "0000000000000001000000000000000a", cfg.Clusters[0].ID)
	assert.Equal(t, 30*time.Second, cfg.Clusters[0].TTL.Duration)
	assert.Equal(t, DefaultGroupCacheTTL, cfg.Registry.GroupCacheTTL.Duration)
	assert.Equal(t, DefaultMaxValueSize, cfg.Storage.MaxValueSize)
}

func TestLoadConfigTOML(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "globaldb.toml", tomlConfig)

	cfg, err := LoadConfig(fs, "globaldb.toml")
	require.NoError(t, err)

	assert.Equal(t, ":17400", cfg.Admin.Address)
	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, "virtual", cfg.Clusters[0].Type)
}

func TestLoadConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadConfig(fs, "missing.json")
	assert.Error(t, err)

	writeFile(t, fs, "bad.json", "{")
	_, err = LoadConfig(fs, "bad.json")
	assert.ErrorContains(t, err, "failed to parse config")

	writeFile(t, fs, "dur.json", `{"dispatcher": {"drain_timeout": "soon"}}`)
	_, err = LoadConfig(fs, "dur.json")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	one := uint64(1)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad overflow", func(c *Config) { c.Dispatcher.Overflow = "spill" }, "dispatcher.overflow"},
		{"negative workers", func(c *Config) { c.Dispatcher.Workers = -1 }, "dispatcher.workers"},
		{"duplicate mnemonic", func(c *Config) {
			c.Clusters = []ClusterConfig{{Mnemonic: "a"}, {Mnemonic: "a"}}
		}, "duplicate mnemonic"},
		{"id and composite", func(c *Config) {
			c.Clusters = []ClusterConfig{{ID: "00", NetworkID: &one, ServiceID: &one}}
		}, "mutually exclusive"},
		{"half composite", func(c *Config) {
			c.Clusters = []ClusterConfig{{NetworkID: &one}}
		}, "set together"},
		{"empty member", func(c *Config) {
			c.Clusters = []ClusterConfig{{Members: []MemberConfig{{Role: "user"}}}}
		}, "address is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GLOBALDB_NODE_ADDRESS", "env:1")
	t.Setenv("GLOBALDB_DISPATCH_WORKERS", "3")
	t.Setenv("GLOBALDB_DISPATCH_DRAIN_TIMEOUT", "750ms")
	t.Setenv("GLOBALDB_METRICS_ENABLED", "true")
	t.Setenv("GLOBALDB_NETWORKS", "4, 5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env:1", cfg.NodeAddress)
	assert.Equal(t, 3, cfg.Dispatcher.Workers)
	assert.Equal(t, 750*time.Millisecond, cfg.Dispatcher.DrainTimeout.Duration)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []uint64{4, 5}, cfg.Networks)

	t.Setenv("GLOBALDB_DISPATCH_WORKERS", "many")
	_, err = LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadDotEnvMissing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(t.TempDir()+"/.env"))
}

func TestClientConfig(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := LoadClientConfig(fs, "/home/u/.globaldb/client.json")
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)

	cfg.AdminAddress = "db1:7400"
	cfg.RetryCount = 5
	require.NoError(t, cfg.Save(fs, "/home/u/.globaldb/client.json"))

	loaded, err := LoadClientConfig(fs, "/home/u/.globaldb/client.json")
	require.NoError(t, err)
	assert.Equal(t, "db1:7400", loaded.AdminAddress)
	assert.Equal(t, 5, loaded.RetryCount)
	assert.Equal(t, 10*time.Second, loaded.Timeout.Duration)
}
