package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"globaldb/pkg/admin"
	"globaldb/pkg/config"

	"github.com/spf13/cobra"
)

func clusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Manage clusters",
	}
	cmd.AddCommand(clusterCreateCmd(), clusterListCmd(), clusterLookupCmd())
	return cmd
}

func clusterCreateCmd() *cobra.Command {
	var (
		id              string
		networkID       uint64
		serviceID       uint64
		ttl             time.Duration
		ownerRootAccess bool
		defaultRole     string
		clusterType     string
	)

	cmd := &cobra.Command{
		Use:   "create <mnemonic> <group-mask>",
		Short: "Create a cluster",
		Long: `Create a cluster owning every group matched by the mask. '*' matches any
run of characters and '?' matches exactly one.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := config.ClusterConfig{
				Mnemonic:        args[0],
				ID:              id,
				GroupMask:       args[1],
				TTL:             config.Duration{Duration: ttl},
				OwnerRootAccess: ownerRootAccess,
				DefaultRole:     defaultRole,
				Type:            clusterType,
			}
			if cmd.Flags().Changed("network-id") || cmd.Flags().Changed("service-id") {
				cc.NetworkID = &networkID
				cc.ServiceID = &serviceID
			}

			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				info, err := client.CreateCluster(ctx, cc)
				if err != nil {
					return err
				}
				if cfg.OutputFormat == "json" {
					return printJSON(info)
				}
				fmt.Printf("Created cluster %s (%s) for mask %q\n", info.Mnemonic, info.ID, info.GroupMask)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "cluster identifier as 32 hex characters")
	cmd.Flags().Uint64Var(&networkID, "network-id", 0, "compose the identifier from this network id")
	cmd.Flags().Uint64Var(&serviceID, "service-id", 0, "compose the identifier from this service id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "member time to live")
	cmd.Flags().BoolVar(&ownerRootAccess, "owner-root", false, "grant the node owner root access")
	cmd.Flags().StringVar(&defaultRole, "default-role", "user", "role of non-members: nobody, guest, user, root")
	cmd.Flags().StringVar(&clusterType, "type", "autonomic", "cluster type: embedded, autonomic, isolated, virtual")
	return cmd
}

func clusterListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				clusters, err := client.ListClusters(ctx)
				if err != nil {
					return err
				}
				if cfg.OutputFormat == "json" {
					return printJSON(clusters)
				}
				fmt.Println(renderClusterTable(clusters))
				return nil
			})
		},
	}
}

func clusterLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <group>",
		Short: "Find the cluster owning a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				info, err := client.ClusterByGroup(ctx, args[0])
				if err != nil {
					return err
				}
				if cfg.OutputFormat == "json" {
					return printJSON(info)
				}
				if info == nil {
					fmt.Printf("Group %q is not clustered\n", args[0])
					return nil
				}
				fmt.Printf("Group %q belongs to cluster %s (%s, mask %q)\n", args[0], info.Mnemonic, info.ID, info.GroupMask)
				return nil
			})
		},
	}
}

func memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage cluster members",
	}

	var role string
	add := &cobra.Command{
		Use:   "add <cluster> <address>",
		Short: "Add a member; an existing member keeps its role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				m, err := client.MemberAdd(ctx, args[0], args[1], role)
				if err != nil {
					return err
				}
				if cfg.OutputFormat == "json" {
					return printJSON(m)
				}
				fmt.Printf("Member %s has role %s\n", m.Address, m.Role)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", "default", "member role: nobody, guest, user, root, default")

	del := &cobra.Command{
		Use:   "delete <cluster> <address>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				removed, err := client.MemberDelete(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%s is not a member of %s", args[1], args[0])
				}
				fmt.Printf("Removed %s from %s\n", args[1], args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func networkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Manage network associations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "associate <cluster> <network-id>",
		Short: "Associate a cluster with a network",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			networkID, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid network id %q: %w", args[1], err)
			}
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				if err := client.AssociateNetwork(ctx, args[0], networkID); err != nil {
					return err
				}
				fmt.Printf("Cluster %s associated with network %d\n", args[0], networkID)
				return nil
			})
		},
	})
	return cmd
}
