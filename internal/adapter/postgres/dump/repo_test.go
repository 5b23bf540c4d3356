package dump

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func dumpRow(d domain.Dump) *pgxmock.Rows {
	return pgxmock.NewRows(columns).
		AddRow(d.ETag, d.Type.String(), d.LastModifiedAt, d.URI, d.SizeBytes, d.CreatedAt)
}

var june = time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestRepo_GetByETag(t *testing.T) {
	t.Parallel()

	want := domain.Dump{
		ETag:           "3f2a",
		Type:           domain.EntityTypeLabel,
		LastModifiedAt: june,
		URI:            "data/2023/discogs_20230601_labels.xml.gz",
		SizeBytes:      42,
		CreatedAt:      june.Add(time.Hour),
	}

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT etag, type, last_modified_at, uri, size_bytes, created_at FROM dump WHERE etag = $1`)).
			WithArgs("3f2a").
			WillReturnRows(dumpRow(want))

		got, err := New(mock).GetByETag(context.Background(), "3f2a")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing maps to not found", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(`FROM dump WHERE etag`).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := New(mock).GetByETag(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound), err)
	})
}

func TestRepo_GetMostRecentByTypePeriod(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	want := domain.Dump{ETag: "a1", Type: domain.EntityTypeArtist, LastModifiedAt: june.AddDate(0, 0, 20), URI: "u", CreatedAt: june}

	mock.ExpectQuery(regexp.QuoteMeta(`FROM dump WHERE type = $1 AND (last_modified_at >= $2 AND last_modified_at < $3) ORDER BY last_modified_at DESC, etag LIMIT 1`)).
		WithArgs("artist", june, june.AddDate(0, 1, 0)).
		WillReturnRows(dumpRow(want))

	got, err := New(mock).GetMostRecentByTypePeriod(context.Background(), domain.EntityTypeArtist, domain.Period{Year: 2023, Month: 6})
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ETag)
	assert.Equal(t, domain.EntityTypeArtist, got.Type)
}

func TestRepo_GetAllByTypesPeriod(t *testing.T) {
	t.Parallel()

	p := domain.Period{Year: 2023, Month: 6}
	query := regexp.QuoteMeta(`SELECT DISTINCT ON (type) etag, type, last_modified_at, uri, size_bytes, created_at FROM dump WHERE type IN ($1,$2) AND (last_modified_at >= $3 AND last_modified_at < $4) ORDER BY type, last_modified_at DESC, etag`)

	t.Run("complete set in canonical order", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		rows := pgxmock.NewRows(columns).
			AddRow("l1", "label", june, "ul", int64(1), june).
			AddRow("a1", "artist", june, "ua", int64(2), june)
		mock.ExpectQuery(query).
			WithArgs("artist", "label", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(rows)

		got, err := New(mock).GetAllByTypesPeriod(context.Background(),
			[]domain.EntityType{domain.EntityTypeLabel, domain.EntityTypeArtist}, p)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a1", got[0].ETag)
		assert.Equal(t, "l1", got[1].ETag)
	})

	t.Run("missing type is not found", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		rows := pgxmock.NewRows(columns).AddRow("a1", "artist", june, "ua", int64(2), june)
		mock.ExpectQuery(query).
			WithArgs("artist", "label", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(rows)

		_, err := New(mock).GetAllByTypesPeriod(context.Background(),
			[]domain.EntityType{domain.EntityTypeArtist, domain.EntityTypeLabel}, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound), err)
		assert.Contains(t, err.Error(), "label")
	})

	t.Run("empty types issue no query", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)

		got, err := New(mock).GetAllByTypesPeriod(context.Background(), nil, p)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("deadline passes through", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectQuery(query).
			WithArgs("artist", "label", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(context.DeadlineExceeded)

		_, err := New(mock).GetAllByTypesPeriod(context.Background(),
			[]domain.EntityType{domain.EntityTypeArtist, domain.EntityTypeLabel}, p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
		assert.False(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestRepo_UpsertDumps(t *testing.T) {
	t.Parallel()

	t.Run("single statement for the batch", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO dump (etag,type,last_modified_at,uri,size_bytes) VALUES ($1,$2,$3,$4,$5),($6,$7,$8,$9,$10) ON CONFLICT (etag) DO UPDATE SET`)).
			WithArgs(
				"a1", "artist", june, "ua", int64(10),
				"l1", "label", june, "ul", int64(20),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 2))

		n, err := New(mock).UpsertDumps(context.Background(), []domain.Dump{
			{ETag: "a1", Type: domain.EntityTypeArtist, LastModifiedAt: june.Add(13 * time.Hour), URI: "ua", SizeBytes: 10},
			{ETag: "l1", Type: domain.EntityTypeLabel, LastModifiedAt: june, URI: "ul", SizeBytes: 20},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)

		n, err := New(mock).UpsertDumps(context.Background(), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
