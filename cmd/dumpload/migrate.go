package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return postgres.Migrate(cmd.Context(), root.log, root.cfg.Database.DSN)
		},
	}
}
