package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAdminAddress   = ":7400"
	DefaultMetricsAddress = ":9400"
	DefaultWorkers        = 4
	DefaultQueueSize      = 1024
	DefaultOverflow       = "drop-oldest"
	DefaultDrainTimeout   = 5 * time.Second
	DefaultGroupCacheTTL  = time.Minute
	DefaultGCInterval     = 5 * time.Minute
	DefaultMaxValueSize   = ByteSize(MiB)
)

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

type Config struct {
	NodeAddress string           `json:"node_address" yaml:"node_address" toml:"node_address"`
	Dispatcher  DispatcherConfig `json:"dispatcher" yaml:"dispatcher" toml:"dispatcher"`
	Registry    RegistryConfig   `json:"registry" yaml:"registry" toml:"registry"`
	Storage     StorageConfig    `json:"storage" yaml:"storage" toml:"storage"`
	Admin       AdminConfig      `json:"admin" yaml:"admin" toml:"admin"`
	Metrics     MetricsConfig    `json:"metrics" yaml:"metrics" toml:"metrics"`
	Networks    []uint64         `json:"networks,omitempty" yaml:"networks,omitempty" toml:"networks,omitempty"`
	Clusters    []ClusterConfig  `json:"clusters,omitempty" yaml:"clusters,omitempty" toml:"clusters,omitempty"`
}

type DispatcherConfig struct {
	Workers      int      `json:"workers" yaml:"workers" toml:"workers"`
	QueueSize    int      `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	Overflow     string   `json:"overflow" yaml:"overflow" toml:"overflow"`
	DrainTimeout Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
}

type RegistryConfig struct {
	// GroupCacheTTL of zero disables the group lookup cache.
	GroupCacheTTL *Duration `json:"group_cache_ttl,omitempty" yaml:"group_cache_ttl,omitempty" toml:"group_cache_ttl,omitempty"`
}

type StorageConfig struct {
	Dir          string   `json:"dir" yaml:"dir" toml:"dir"`
	InMemory     bool     `json:"in_memory" yaml:"in_memory" toml:"in_memory"`
	GCInterval   Duration `json:"gc_interval" yaml:"gc_interval" toml:"gc_interval"`
	MaxValueSize ByteSize `json:"max_value_size" yaml:"max_value_size" toml:"max_value_size"`
}

type AdminConfig struct {
	Address string `json:"address" yaml:"address" toml:"address"`
	// Token, when set, must accompany every admin call as a bearer token.
	Token string `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Address string `json:"address" yaml:"address" toml:"address"`
}

// ClusterConfig is a persisted cluster definition. The identifier comes
// from ID when set, else from NetworkID and ServiceID, else it is random.
type ClusterConfig struct {
	Mnemonic        string         `json:"mnemonic" yaml:"mnemonic" toml:"mnemonic"`
	ID              string         `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	NetworkID       *uint64        `json:"network_id,omitempty" yaml:"network_id,omitempty" toml:"network_id,omitempty"`
	ServiceID       *uint64        `json:"service_id,omitempty" yaml:"service_id,omitempty" toml:"service_id,omitempty"`
	GroupMask       string         `json:"group_mask" yaml:"group_mask" toml:"group_mask"`
	TTL             Duration       `json:"ttl" yaml:"ttl" toml:"ttl"`
	OwnerRootAccess bool           `json:"owner_root_access" yaml:"owner_root_access" toml:"owner_root_access"`
	DefaultRole     string         `json:"default_role" yaml:"default_role" toml:"default_role"`
	Type            string         `json:"type" yaml:"type" toml:"type"`
	Members         []MemberConfig `json:"members,omitempty" yaml:"members,omitempty" toml:"members,omitempty"`
	Network         *uint64        `json:"network,omitempty" yaml:"network,omitempty" toml:"network,omitempty"`
}

type MemberConfig struct {
	Address string `json:"address" yaml:"address" toml:"address"`
	Role    string `json:"role" yaml:"role" toml:"role"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Dispatcher.Workers == 0 {
		c.Dispatcher.Workers = DefaultWorkers
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = DefaultQueueSize
	}
	if c.Dispatcher.Overflow == "" {
		c.Dispatcher.Overflow = DefaultOverflow
	}
	if c.Dispatcher.DrainTimeout.Duration == 0 {
		c.Dispatcher.DrainTimeout.Duration = DefaultDrainTimeout
	}
	if c.Registry.GroupCacheTTL == nil {
		c.Registry.GroupCacheTTL = &Duration{DefaultGroupCacheTTL}
	}
	if c.Storage.Dir == "" {
		c.Storage.InMemory = true
	}
	if c.Storage.GCInterval.Duration == 0 {
		c.Storage.GCInterval.Duration = DefaultGCInterval
	}
	if c.Storage.MaxValueSize == 0 {
		c.Storage.MaxValueSize = DefaultMaxValueSize
	}
	if c.Admin.Address == "" {
		c.Admin.Address = DefaultAdminAddress
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddress
	}
}

// LoadConfig reads path from fsys, decoding by extension: .yaml/.yml,
// .toml, anything else as JSON. Environment overrides and defaults are
// applied before validation.
func LoadConfig(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a configuration from GLOBALDB_* variables only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from GLOBALDB_* environment variables.
func (c *Config) ApplyEnv() error {
	c.NodeAddress = getEnv("GLOBALDB_NODE_ADDRESS", c.NodeAddress)
	c.Admin.Address = getEnv("GLOBALDB_ADMIN_ADDRESS", c.Admin.Address)
	c.Admin.Token = getEnv("GLOBALDB_ADMIN_TOKEN", c.Admin.Token)
	c.Metrics.Address = getEnv("GLOBALDB_METRICS_ADDRESS", c.Metrics.Address)
	c.Storage.Dir = getEnv("GLOBALDB_STORAGE_DIR", c.Storage.Dir)
	c.Dispatcher.Overflow = getEnv("GLOBALDB_DISPATCH_OVERFLOW", c.Dispatcher.Overflow)

	if v := os.Getenv("GLOBALDB_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GLOBALDB_METRICS_ENABLED: %w", err)
		}
		c.Metrics.Enabled = b
	}
	if v := os.Getenv("GLOBALDB_DISPATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GLOBALDB_DISPATCH_WORKERS: %w", err)
		}
		c.Dispatcher.Workers = n
	}
	if v := os.Getenv("GLOBALDB_DISPATCH_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GLOBALDB_DISPATCH_QUEUE_SIZE: %w", err)
		}
		c.Dispatcher.QueueSize = n
	}
	if v := os.Getenv("GLOBALDB_STORAGE_MAX_VALUE_SIZE"); v != "" {
		if err := c.Storage.MaxValueSize.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("GLOBALDB_STORAGE_MAX_VALUE_SIZE: %w", err)
		}
	}
	if v := os.Getenv("GLOBALDB_DISPATCH_DRAIN_TIMEOUT"); v != "" {
		if err := c.Dispatcher.DrainTimeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("GLOBALDB_DISPATCH_DRAIN_TIMEOUT: %w", err)
		}
	}
	if v := os.Getenv("GLOBALDB_NETWORKS"); v != "" {
		// Comma-separated network ids: 1,2,3
		c.Networks = c.Networks[:0]
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return fmt.Errorf("GLOBALDB_NETWORKS: %w", err)
			}
			c.Networks = append(c.Networks, id)
		}
	}
	return nil
}

// Validate reports structural problems. Semantic cluster checks such as
// mask collisions happen when clusters are created.
func (c *Config) Validate() error {
	var errs []error

	if c.Dispatcher.Workers < 0 {
		errs = append(errs, fmt.Errorf("dispatcher.workers must not be negative"))
	}
	if c.Dispatcher.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("dispatcher.queue_size must not be negative"))
	}
	switch strings.ToLower(c.Dispatcher.Overflow) {
	case "", "drop-oldest", "drop_oldest", "block":
	default:
		errs = append(errs, fmt.Errorf("dispatcher.overflow %q is not drop-oldest or block", c.Dispatcher.Overflow))
	}

	mnemonics := make(map[string]bool)
	for i, cl := range c.Clusters {
		if cl.Mnemonic != "" {
			if mnemonics[cl.Mnemonic] {
				errs = append(errs, fmt.Errorf("clusters[%d]: duplicate mnemonic %q", i, cl.Mnemonic))
			}
			mnemonics[cl.Mnemonic] = true
		}
		if cl.ID != "" && (cl.NetworkID != nil || cl.ServiceID != nil) {
			errs = append(errs, fmt.Errorf("clusters[%d]: id and network_id/service_id are mutually exclusive", i))
		}
		if (cl.NetworkID == nil) != (cl.ServiceID == nil) {
			errs = append(errs, fmt.Errorf("clusters[%d]: network_id and service_id must be set together", i))
		}
		for j, m := range cl.Members {
			if m.Address == "" {
				errs = append(errs, fmt.Errorf("clusters[%d].members[%d]: address is empty", i, j))
			}
		}
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
