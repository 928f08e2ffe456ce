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

	"github.com/cenkalti/backoff"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func putCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "put <group> <key> [value]",
		Short: "Write a value and notify the owning cluster",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value []byte
			switch {
			case file != "":
				data, err := afero.ReadFile(afero.NewOsFs(), file)
				if err != nil {
					return fmt.Errorf("failed to read value file: %w", err)
				}
				value = data
			case len(args) == 3:
				value = []byte(args[2])
			default:
				return fmt.Errorf("a value or --file is required")
			}

			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				n, err := client.Put(ctx, args[0], args[1], value)
				if err != nil {
					return err
				}
				fmt.Printf("Stored %s/%s (%s, %d notifications)\n", args[0], args[1], config.ByteSize(len(value)), n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the value from a file")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <group> <key>",
		Short: "Read a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				value, err := client.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				os.Stdout.Write(value)
				fmt.Println()
				return nil
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group> <key>",
		Short: "Delete a value and notify the owning cluster",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				n, err := client.Delete(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %s/%s (%d notifications)\n", args[0], args[1], n)
				return nil
			})
		},
	}
}

func watchCmd() *cobra.Command {
	var maxElapsed time.Duration

	cmd := &cobra.Command{
		Use:   "watch <cluster>",
		Short: "Stream mutations of a cluster",
		Long:  `Subscribe to a cluster and print every mutation. Dropped streams are retried with exponential backoff.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientSettings()
			if err != nil {
				return err
			}
			client, err := admin.Dial(cfg.AdminAddress, cfg.Token)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed

			for {
				err := client.Watch(ctx, args[0], func(ev *admin.Event) error {
					b.Reset()
					return printEvent(ev, cfg.OutputFormat)
				})
				if ctx.Err() != nil {
					return nil
				}
				switch status.Code(err) {
				case codes.NotFound, codes.InvalidArgument, codes.Unauthenticated:
					return err
				}

				next := b.NextBackOff()
				if next == backoff.Stop {
					return fmt.Errorf("watch gave up: %w", err)
				}
				fmt.Fprintf(os.Stderr, "watch interrupted (%v), retrying in %s\n", err, next.Round(time.Millisecond))

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(next):
				}
			}
		},
	}
	cmd.Flags().DurationVar(&maxElapsed, "max-retry", 5*time.Minute, "give up reconnecting after this long (0 retries forever)")
	return cmd
}

func printEvent(ev *admin.Event, format string) error {
	if format == "json" {
		return printJSON(ev)
	}
	ts := ev.Time.Format(time.RFC3339)
	if ev.Op == "DELETE" {
		fmt.Printf("%s %s %-6s %s/%s\n", ts, ev.Cluster, ev.Op, ev.Group, ev.Key)
		return nil
	}
	fmt.Printf("%s %s %-6s %s/%s = %q\n", ts, ev.Cluster, ev.Op, ev.Group, ev.Key, ev.Value)
	return nil
}
