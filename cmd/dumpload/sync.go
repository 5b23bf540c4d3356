package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh the dump catalog from the bucket listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Catalog.Sync(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listed=%d stored=%d skipped=%d\n", res.Listed, res.Stored, res.Skipped)
			return nil
		},
	}
}
