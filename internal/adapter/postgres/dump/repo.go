// Package dump implements the snapshot catalog repository using PostgreSQL.
// Every published dump file is one row keyed by its version tag (ETag).
package dump

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	postgres "github.com/heartmarshall/discogs-dumpload/internal/adapter/postgres"
	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

const table = "dump"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	columns = []string{"etag", "type", "last_modified_at", "uri", "size_bytes", "created_at"}
)

// Repo provides catalog persistence backed by PostgreSQL.
type Repo struct {
	db postgres.Querier
}

// New creates a new catalog repository.
func New(db postgres.Querier) *Repo {
	return &Repo{db: db}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByETag returns the dump with the given version tag.
// Returns domain.ErrNotFound if no such dump is catalogued.
func (r *Repo) GetByETag(ctx context.Context, etag string) (domain.Dump, error) {
	query, args, err := psql.Select(columns...).
		From(table).
		Where(sq.Eq{"etag": etag}).
		ToSql()
	if err != nil {
		return domain.Dump{}, fmt.Errorf("build get dump by etag: %w", err)
	}

	d, err := scanDump(postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Dump{}, postgres.MapError(err, "dump", etag)
	}
	return d, nil
}

// GetMostRecentByTypePeriod returns the latest dump of type t published
// within period p. Returns domain.ErrNotFound if there is none.
func (r *Repo) GetMostRecentByTypePeriod(ctx context.Context, t domain.EntityType, p domain.Period) (domain.Dump, error) {
	query, args, err := psql.Select(columns...).
		From(table).
		Where(sq.Eq{"type": t.String()}).
		Where(periodFilter(p)).
		OrderBy("last_modified_at DESC", "etag").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Dump{}, fmt.Errorf("build get most recent dump: %w", err)
	}

	d, err := scanDump(postgres.QuerierFromCtx(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Dump{}, postgres.MapError(err, "dump", t.String()+"@"+p.String())
	}
	return d, nil
}

// GetAllByTypesPeriod returns the latest dump of every type in types
// published within period p, in canonical type order. The set is all or
// nothing: if any requested type has no dump in p, it returns
// domain.ErrNotFound naming the missing types.
func (r *Repo) GetAllByTypesPeriod(ctx context.Context, types []domain.EntityType, p domain.Period) ([]domain.Dump, error) {
	types = domain.SortEntityTypes(types)
	if len(types) == 0 {
		return []domain.Dump{}, nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}

	query, args, err := psql.Select(columns...).
		Options("DISTINCT ON (type)").
		From(table).
		Where(sq.Eq{"type": names}).
		Where(periodFilter(p)).
		OrderBy("type", "last_modified_at DESC", "etag").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get dumps by types: %w", err)
	}

	rows, err := postgres.QuerierFromCtx(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, postgres.MapError(err, "dumps", p.String())
	}
	defer rows.Close()

	byType := make(map[domain.EntityType]domain.Dump, len(types))
	for rows.Next() {
		d, err := scanDump(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dump: %w", err)
		}
		byType[d.Type] = d
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError(err, "dumps", p.String())
	}

	out := make([]domain.Dump, 0, len(types))
	var missing []string
	for _, t := range types {
		d, ok := byType[t]
		if !ok {
			missing = append(missing, t.String())
			continue
		}
		out = append(out, d)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dumps %s at %s: %w", strings.Join(missing, ","), p, domain.ErrNotFound)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// UpsertDumps inserts dumps, refreshing date, locator and size of version
// tags already catalogued. Returns the number of affected rows.
func (r *Repo) UpsertDumps(ctx context.Context, dumps []domain.Dump) (int64, error) {
	if len(dumps) == 0 {
		return 0, nil
	}

	b := psql.Insert(table).Columns("etag", "type", "last_modified_at", "uri", "size_bytes")
	for _, d := range dumps {
		b = b.Values(d.ETag, d.Type.String(), domain.TruncateToDay(d.LastModifiedAt), d.URI, d.SizeBytes)
	}
	query, args, err := b.Suffix(
		"ON CONFLICT (etag) DO UPDATE SET " +
			"last_modified_at = EXCLUDED.last_modified_at, " +
			"uri = EXCLUDED.uri, " +
			"size_bytes = EXCLUDED.size_bytes",
	).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build upsert dumps: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.db).Exec(ctx, query, args...)
	if err != nil {
		return 0, postgres.MapError(err, "dumps", fmt.Sprintf("batch of %d", len(dumps)))
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// periodFilter matches last_modified_at within the calendar month p.
func periodFilter(p domain.Period) sq.And {
	next := p.Start().AddDate(0, 1, 0)
	return sq.And{
		sq.GtOrEq{"last_modified_at": p.Start()},
		sq.Lt{"last_modified_at": next},
	}
}

func scanDump(row pgx.Row) (domain.Dump, error) {
	var (
		d   domain.Dump
		typ string
	)
	if err := row.Scan(&d.ETag, &typ, &d.LastModifiedAt, &d.URI, &d.SizeBytes, &d.CreatedAt); err != nil {
		return domain.Dump{}, err
	}
	d.Type = domain.EntityType(typ)
	d.LastModifiedAt = d.LastModifiedAt.UTC()
	return d, nil
}
