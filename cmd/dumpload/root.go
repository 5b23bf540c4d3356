package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/discogs-dumpload/internal/app"
	"github.com/heartmarshall/discogs-dumpload/internal/config"
	"github.com/heartmarshall/discogs-dumpload/pkg/ctxutil"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dumpload",
		Short:         "Load Discogs data dumps into PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help":
				return nil
			}
			load := config.Load
			if opts.configPath != "" {
				load = func() (*config.Config, error) { return config.LoadFrom(opts.configPath) }
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			opts.cfg = cfg
			opts.log = app.NewLogger(cfg.Log)
			cmd.SetContext(ctxutil.WithCommand(cmd.Context(), cmd.Name()))
			return nil
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (default: $CONFIG_PATH or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newLoadCmd(opts),
		newResolveCmd(opts),
		newSyncCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// bootstrap wires the application for commands that need the database and
// the dump bucket.
func (o *rootOptions) bootstrap(ctx context.Context) (*app.App, error) {
	o.log.InfoContext(ctx, "starting dumpload",
		slog.String("version", app.BuildVersion()),
		slog.String("bucket", o.cfg.Catalog.Bucket),
	)
	a, err := app.New(ctx, o.cfg, o.log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return a, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.BuildVersion())
		},
	}
}
