// Package staging moves parsed dump rows through the per-table staging area
// into the permanent tables. Raw rows are bulk-inserted into UNLOGGED staging
// tables with pgx.Batch; the commit runs prune and select-insert (or upsert)
// for every table of the step inside one transaction.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres"
	"github.com/heartmarshall/discogs-dumpload/internal/query"
)

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Writer implements the staged write path of a load step.
type Writer struct {
	log *slog.Logger
	db  postgres.Querier
	tx  txManager
}

// New creates a Writer.
func New(log *slog.Logger, db postgres.Querier, tx txManager) *Writer {
	return &Writer{
		log: log.With("component", "staging"),
		db:  db,
		tx:  tx,
	}
}

// Prepare creates the staging tables of stages if missing and empties them.
func (w *Writer) Prepare(ctx context.Context, stages []query.Stages) error {
	q := postgres.QuerierFromCtx(ctx, w.db)
	for _, st := range stages {
		if _, err := q.Exec(ctx, st.CreateStaging); err != nil {
			return fmt.Errorf("create staging %s: %w", st.Table.Staging(), err)
		}
		if _, err := q.Exec(ctx, st.TruncateStaging); err != nil {
			return fmt.Errorf("truncate staging %s: %w", st.Table.Staging(), err)
		}
	}
	return nil
}

// Stage bulk-inserts rows into the staging table of st. Each row holds the
// values of st.Table.ColumnNames in order.
func (w *Writer) Stage(ctx context.Context, st query.Stages, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(st.TemporaryInsert, row...)
	}

	if _, err := w.sendBatchExec(ctx, batch); err != nil {
		return fmt.Errorf("stage %s: %w", st.Table.Staging(), err)
	}
	return nil
}

// Commit prunes every staging table and moves the surviving rows into the
// permanent tables, in stage order and inside one transaction. With upsert
// set, existing rows have their mutable columns overwritten; otherwise
// conflicting rows are skipped. Returns the rows inserted or updated.
func (w *Writer) Commit(ctx context.Context, stages []query.Stages, upsert bool) (int64, error) {
	var written int64

	err := w.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, w.db)
		written = 0

		for _, st := range stages {
			var pruned int64
			for _, stmt := range st.Prune {
				tag, err := q.Exec(ctx, stmt)
				if err != nil {
					return fmt.Errorf("prune %s: %w", st.Table.Staging(), err)
				}
				pruned += tag.RowsAffected()
			}

			stmt := st.SelectInsert
			if upsert {
				stmt = st.Upsert
			}
			tag, err := q.Exec(ctx, stmt)
			if err != nil {
				return postgres.MapError(err, "table", st.Table.Name)
			}
			written += tag.RowsAffected()

			w.log.DebugContext(ctx, "table committed",
				slog.String("table", st.Table.Name),
				slog.Int64("pruned", pruned),
				slog.Int64("written", tag.RowsAffected()),
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Drop removes the staging tables of stages, last table first. Every table
// is attempted; the errors are joined.
func (w *Writer) Drop(ctx context.Context, stages []query.Stages) error {
	q := postgres.QuerierFromCtx(ctx, w.db)
	var errs []error
	for i := len(stages) - 1; i >= 0; i-- {
		if _, err := q.Exec(ctx, stages[i].DropStaging); err != nil {
			errs = append(errs, fmt.Errorf("drop staging %s: %w", stages[i].Table.Staging(), err))
		}
	}
	return errors.Join(errs...)
}

// sendBatchExec sends a pgx.Batch and counts affected rows from Exec results.
func (w *Writer) sendBatchExec(ctx context.Context, batch *pgx.Batch) (int64, error) {
	q := postgres.QuerierFromCtx(ctx, w.db)
	results := q.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range batch.Len() {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch exec: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}
