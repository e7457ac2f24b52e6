package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vulpemventures/go-polyderive/hdsigner"
)

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted instance cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Print the pools and cursors of the instance cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInspect(cmd, e)
		},
	})
	return cmd
}

func runCacheInspect(cmd *cobra.Command, e *env) error {
	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	requests := c.Requests()
	fmt.Fprintf(out, "pools: %d, instances: %d\n", len(requests), c.Len())
	for _, r := range requests {
		pool := c.Peek(r)
		fmt.Fprintf(out, "  %s size=%d next=%d\n", r, len(pool), c.NextOffset(r, 0))
	}
	return nil
}

func newMnemonicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mnemonic",
		Short: "Generate a new 24 words BIP39 mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := hdsigner.NewMnemonic()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), m)
			return nil
		},
	}
}
