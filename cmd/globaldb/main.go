package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"globaldb/pkg/admin"
	"globaldb/pkg/config"
	"globaldb/pkg/globaldb"
	"globaldb/pkg/metrics"
	"globaldb/pkg/storage"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.3.0"

var (
	configFile string
	envFile    string
	verbose    bool

	adminAddr    string
	adminToken   string
	timeout      time.Duration
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "globaldb",
		Short: "GlobalDB cluster node and admin tool",
		Long: `GlobalDB groups storage groups into clusters by name mask, tracks
cluster membership and notifies subscribers of every mutation.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (.json, .yaml, .toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&adminAddr, "addr", "a", "", "admin server address (default from client config)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "admin bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "request timeout")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: styled or json")

	rootCmd.AddCommand(
		serveCmd(),
		validateCmd(),
		statusCmd(),
		clusterCmd(),
		memberCmd(),
		networkCmd(),
		putCmd(),
		getCmd(),
		deleteCmd(),
		watchCmd(),
		idCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadServerConfig reads the node configuration from --config, or from
// GLOBALDB_* variables when no file is given.
func loadServerConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if configFile == "" {
		return config.LoadFromEnv()
	}
	cfg, err := config.LoadConfig(afero.NewOsFs(), configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var healthInterval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a GlobalDB node",
		Long:  `Start the cluster registry, notification dispatcher, store and admin server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}

			opts, err := globaldb.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			inst, err := globaldb.Init(opts, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize instance: %w", err)
			}
			if err := inst.Apply(cfg); err != nil {
				return fmt.Errorf("failed to apply cluster configuration: %w", err)
			}

			store, err := storage.Open(storage.Options{
				Dir:          cfg.Storage.Dir,
				InMemory:     cfg.Storage.InMemory,
				GCInterval:   cfg.Storage.GCInterval.Duration,
				MaxValueSize: int64(cfg.Storage.MaxValueSize),
			}, inst, logger.Named("storage"))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := inst.Start(); err != nil {
				return err
			}

			monitor := metrics.NewHealthMonitor(inst.Metrics(), inst, healthInterval, logger.Named("health"))
			monitor.Start()
			defer monitor.Stop()

			if cfg.Metrics.Enabled {
				httpServer := metrics.StartServer(cfg.Metrics.Address, monitor, inst.Gatherer(), logger)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					httpServer.Shutdown(ctx)
				}()
			}

			adminServer := admin.NewServer(inst, store, admin.ServerOptions{
				Token:   cfg.Admin.Token,
				Monitor: monitor,
			}, logger.Named("admin"))
			if err := adminServer.Start(cfg.Admin.Address); err != nil {
				return err
			}

			logger.Info("GlobalDB node running",
				zap.String("node_address", cfg.NodeAddress),
				zap.String("admin_address", cfg.Admin.Address),
				zap.Int("clusters", len(inst.Clusters())))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("Shutting down GlobalDB node")
			adminServer.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Dispatcher.DrainTimeout.Duration+time.Second)
			defer cancel()
			if err := inst.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Shutdown incomplete", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&healthInterval, "health-interval", 10*time.Second, "health check interval")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration file",
		Long:  `Load the configuration and create its clusters on a scratch instance, reporting the first problem.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			opts, err := globaldb.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			inst, err := globaldb.Init(opts, nil)
			if err != nil {
				return err
			}
			defer inst.Shutdown(context.Background())

			if err := inst.Apply(cfg); err != nil {
				return err
			}

			fmt.Printf("Configuration valid: %d clusters\n", len(inst.Clusters()))
			for _, c := range inst.Clusters() {
				fmt.Printf("  %-16s %s  %-20s %s\n", c.Name(), c.ID(), c.GroupMask(), c.Type())
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GlobalDB v%s\n", version)
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, _ := config.Build()
	return logger
}
