package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/discogs-dumpload/internal/app/loader"
)

type loadOptions struct {
	selection selectionFlags
	upsert    bool
	dryRun    bool
}

func newLoadCmd(root *rootOptions) *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Resolve a dump selection and load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, root, opts)
		},
	}
	opts.selection.register(cmd)
	cmd.Flags().BoolVar(&opts.upsert, "upsert", false, "overwrite mutable columns of existing rows")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "resolve and print the plan without loading")
	return cmd
}

func runLoad(cmd *cobra.Command, root *rootOptions, opts loadOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), root.cfg.Loader.Timeout)
	defer cancel()

	a, err := root.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	set, err := a.Resolver.ResolveArgs(ctx, opts.selection.args(cmd))
	if err != nil {
		return err
	}
	plan := loader.NewPlan(set)
	printPlan(cmd.OutOrStdout(), plan)
	if opts.dryRun {
		return nil
	}

	// The metrics listener lives as long as the load.
	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopMetrics := context.WithCancel(gctx)
	g.Go(func() error {
		if err := a.Metrics.Serve(srvCtx, root.log, root.cfg.Metrics.Addr); err != nil {
			root.log.WarnContext(ctx, "metrics listener stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	var report loader.Report
	g.Go(func() error {
		defer stopMetrics()
		var err error
		report, err = a.Loader(opts.upsert).RunPlan(gctx, plan)
		return err
	})

	err = g.Wait()
	printReport(cmd.OutOrStdout(), report)
	if err != nil {
		return err
	}
	if report.Failed() {
		return errors.New("load finished with failed steps")
	}
	root.log.InfoContext(ctx, "load completed successfully", slog.Int("steps", len(report.Steps)))
	return nil
}

func printPlan(w io.Writer, plan loader.Plan) {
	fmt.Fprintf(w, "plan %s\n", plan.RunID)
	for _, s := range plan.Steps {
		fmt.Fprintf(w, "  %-8s %-40s %s  after=%v\n",
			s.Type, s.Dump.ETag, s.Dump.LastModifiedAt.Format("2006-01-02"), s.After)
	}
}

func printReport(w io.Writer, report loader.Report) {
	for _, s := range report.Steps {
		fmt.Fprintf(w, "  %-8s %-8s records=%d staged=%d skipped=%d written=%d duration=%s\n",
			s.Type, s.Status, s.Records, s.Staged, s.Skipped, s.Written, s.Duration.Round(time.Millisecond))
	}
}
