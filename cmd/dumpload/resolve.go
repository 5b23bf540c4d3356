package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/discogs-dumpload/internal/app/loader"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the dumps a selection resolves to, in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			set, err := a.Resolver.ResolveArgs(ctx, sel.args(cmd))
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), loader.NewPlan(set))
			return nil
		},
	}
	sel.register(cmd)
	return cmd
}
