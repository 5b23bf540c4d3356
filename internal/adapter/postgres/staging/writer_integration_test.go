//go:build integration

package staging_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	postgres "github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres/staging"
	"github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/discogs-dumpload/internal/domain"
	"github.com/heartmarshall/discogs-dumpload/internal/query"
)

func TestWriter_Integration_PruneAndUpsert(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	ctx := context.Background()
	w := staging.New(slog.New(slog.NewTextHandler(io.Discard, nil)), pool, postgres.NewTxManager(pool))

	now := time.Now().UTC()
	day := domain.TruncateToDay(now)

	testhelper.SeedArtist(t, pool, 900001, "Existing")

	stages, err := query.ForType(domain.EntityTypeMaster)
	require.NoError(t, err)
	require.NoError(t, w.Prepare(ctx, stages))
	t.Cleanup(func() { _ = w.Drop(context.Background(), stages) })

	// Duplicate master rows collapse to one; the relation to an unknown
	// artist is pruned.
	require.NoError(t, w.Stage(ctx, stages[0], [][]any{
		{int64(700001), "Title", 1999, "Correct", nil, now, day},
		{int64(700001), "Title", 1999, "Correct", nil, now, day},
	}))
	require.NoError(t, w.Stage(ctx, stages[1], [][]any{
		{int64(700001), int64(900001), now, day},
		{int64(700001), int64(999999), now, day},
	}))

	written, err := w.Commit(ctx, stages, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), written)

	var links int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM master_artist WHERE master_id = 700001`).Scan(&links))
	assert.Equal(t, 1, links)

	// Reloading the same rows writes nothing; an upsert of a changed row
	// overwrites only the mutable columns.
	require.NoError(t, w.Prepare(ctx, stages))
	require.NoError(t, w.Stage(ctx, stages[0], [][]any{
		{int64(700001), "Renamed", 2001, "Needs Vote", int64(5), now, day},
	}))
	written, err = w.Commit(ctx, stages, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	var (
		title   string
		year    int
		quality string
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT title, year, data_quality FROM master WHERE id = 700001`).Scan(&title, &year, &quality))
	assert.Equal(t, "Title", title)
	assert.Equal(t, 1999, year)
	assert.Equal(t, "Needs Vote", quality)
}
