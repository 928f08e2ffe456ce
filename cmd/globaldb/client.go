package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"globaldb/pkg/admin"
	"globaldb/pkg/config"

	"github.com/spf13/afero"
)

// clientSettings merges the client config file with command line flags.
func clientSettings() (*config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(afero.NewOsFs(), config.GetClientConfigPath())
	if err != nil {
		return nil, err
	}
	if adminAddr != "" {
		cfg.AdminAddress = adminAddr
	}
	if adminToken != "" {
		cfg.Token = adminToken
	}
	if timeout > 0 {
		cfg.Timeout.Duration = timeout
	}
	if outputFormat != "" {
		cfg.OutputFormat = outputFormat
	}
	return cfg, nil
}

// withClient dials the admin server and runs fn with a request context
// bounded by the configured timeout.
func withClient(fn func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error) error {
	cfg, err := clientSettings()
	if err != nil {
		return err
	}

	client, err := admin.Dial(cfg.AdminAddress, cfg.Token)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Duration)
	defer cancel()
	return fn(ctx, client, cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
