package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ClientConfig holds defaults for the globaldb CLI when it talks to a
// running node over the admin API.
type ClientConfig struct {
	AdminAddress string   `json:"admin_address"`
	Token        string   `json:"token,omitempty"`
	Timeout      Duration `json:"timeout"`
	RetryCount   int      `json:"retry_count"`
	OutputFormat string   `json:"output_format"`
}

// DefaultClientConfig returns the CLI defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		AdminAddress: "localhost" + DefaultAdminAddress,
		Timeout:      Duration{10 * time.Second},
		RetryCount:   3,
		OutputFormat: "styled",
	}
}

// GetConfigDir returns the globaldb client configuration directory
func GetConfigDir() string {
	if dir := os.Getenv("GLOBALDB_CONFIG_DIR"); dir != "" {
		return dir
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "globaldb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".globaldb"
	}
	return filepath.Join(home, ".globaldb")
}

// GetClientConfigPath returns the path to the client config file
func GetClientConfigPath() string {
	return filepath.Join(GetConfigDir(), "client.json")
}

// LoadClientConfig reads the client config from fsys. A missing file yields
// the defaults.
func LoadClientConfig(fsys afero.Fs, path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()

	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat client config: %w", err)
	}
	if exists {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read client config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse client config: %w", err)
		}
	}

	cfg.AdminAddress = getEnv("GLOBALDB_ADMIN_ADDRESS", cfg.AdminAddress)
	cfg.Token = getEnv("GLOBALDB_ADMIN_TOKEN", cfg.Token)
	return cfg, nil
}

// Save writes the client config to path with restricted permissions.
func (c *ClientConfig) Save(fsys afero.Fs, path string) error {
	if err := fsys.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(fsys, path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
