package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// UniqueSuffix returns a short unique string for generating non-conflicting test data.
func UniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedDump inserts a catalog row for a dump of type t published on day.
func SeedDump(t *testing.T, pool *pgxpool.Pool, typ domain.EntityType, day time.Time) domain.Dump {
	t.Helper()
	ctx := context.Background()

	suffix := UniqueSuffix()
	d := domain.Dump{
		ETag:           "etag-" + suffix,
		Type:           typ,
		LastModifiedAt: domain.TruncateToDay(day),
		URI:            "data/" + day.Format("2006") + "/discogs_" + day.Format("20060102") + "_" + typ.String() + "s-" + suffix + ".xml.gz",
		SizeBytes:      1024,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO dump (etag, type, last_modified_at, uri, size_bytes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		d.ETag, d.Type.String(), d.LastModifiedAt, d.URI, d.SizeBytes,
	).Scan(&d.CreatedAt)
	if err != nil {
		t.Fatalf("testhelper: SeedDump: %v", err)
	}
	return d
}

// SeedArtist inserts an artist row directly, bypassing staging.
func SeedArtist(t *testing.T, pool *pgxpool.Pool, id int64, name string) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO artist (id, name, last_modified_at) VALUES ($1, $2, CURRENT_DATE)`,
		id, name,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedArtist: %v", err)
	}
}
