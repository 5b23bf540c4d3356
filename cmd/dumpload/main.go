// Command dumpload resolves published Discogs dumps and loads them into
// PostgreSQL through per-table staging tables.
//
// Subcommands:
//
//	load      resolve a selection and load it
//	resolve   print the dumps a selection resolves to and the load plan
//	sync      refresh the dump catalog from the bucket listing
//	migrate   apply database migrations
//	version   print build information
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
