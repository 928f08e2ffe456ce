package main

import (
	"fmt"
	"strconv"

	"globaldb/pkg/identifier"

	"github.com/spf13/cobra"
)

func idCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Work with 128-bit cluster identifiers",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "compose <network-id> <service-id>",
			Short: "Build an identifier from a network and service id",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				network, err := strconv.ParseUint(args[0], 0, 64)
				if err != nil {
					return fmt.Errorf("invalid network id: %w", err)
				}
				service, err := strconv.ParseUint(args[1], 0, 64)
				if err != nil {
					return fmt.Errorf("invalid service id: %w", err)
				}
				fmt.Println(identifier.Compose(network, service).Hex())
				return nil
			},
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Generate a random identifier",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(identifier.Generate().Hex())
			},
		},
		&cobra.Command{
			Use:   "parse <hex>",
			Short: "Split an identifier into its network and service ids",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := identifier.ParseHex(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("network: %d\nservice: %d\n", id.NetworkID(), id.ServiceID())
				return nil
			},
		},
	)
	return cmd
}
