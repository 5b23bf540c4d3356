// Package catalog keeps the dump catalog in step with the published bucket.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/heartmarshall/discogs-dumpload/internal/adapter/s3/dumpbucket"
	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// keyPattern matches data/<year>/discogs_<yyyymmdd>_<type>s.xml.gz.
var keyPattern = regexp.MustCompile(`(?:^|/)(\d{4})/discogs_(\d{8})_([a-z]+)\.xml\.gz$`)

type bucketLister interface {
	List(ctx context.Context) ([]dumpbucket.Object, error)
}

type dumpRepo interface {
	UpsertDumps(ctx context.Context, dumps []domain.Dump) (int64, error)
}

// SyncResult counts the objects seen by one Sync.
type SyncResult struct {
	Listed  int
	Stored  int64
	Skipped int
}

// Service synchronises the catalog table with the bucket listing.
type Service struct {
	log    *slog.Logger
	bucket bucketLister
	dumps  dumpRepo
}

// NewService creates a catalog Service.
func NewService(log *slog.Logger, bucket bucketLister, dumps dumpRepo) *Service {
	return &Service{
		log:    log.With("service", "catalog"),
		bucket: bucket,
		dumps:  dumps,
	}
}

// Sync lists the bucket and upserts every recognised dump object into the
// catalog. Checksums and unrecognised keys are skipped.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	start := time.Now()

	objects, err := s.bucket.List(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list bucket: %w", err)
	}

	res := SyncResult{Listed: len(objects)}
	dumps := make([]domain.Dump, 0, len(objects))
	seen := make(map[string]bool, len(objects))
	for _, obj := range objects {
		d, ok := ToDump(obj)
		if !ok || seen[d.ETag] {
			res.Skipped++
			continue
		}
		seen[d.ETag] = true
		dumps = append(dumps, d)
	}

	stored, err := s.dumps.UpsertDumps(ctx, dumps)
	if err != nil {
		return res, fmt.Errorf("store dumps: %w", err)
	}
	res.Stored = stored

	s.log.InfoContext(ctx, "catalog synchronised",
		slog.Int("listed", res.Listed),
		slog.Int64("stored", res.Stored),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// ToDump converts a listed object into a catalog entry. It reports false for
// keys that are not entity dumps or objects without a version tag.
func ToDump(obj dumpbucket.Object) (domain.Dump, bool) {
	m := keyPattern.FindStringSubmatch(obj.Key)
	if m == nil || obj.ETag == "" {
		return domain.Dump{}, false
	}
	t, err := domain.ParseEntityType(m[3])
	if err != nil {
		return domain.Dump{}, false
	}

	modified := obj.LastModified
	if modified.IsZero() {
		day, err := time.Parse("20060102", m[2])
		if err != nil {
			return domain.Dump{}, false
		}
		modified = day
	}

	return domain.Dump{
		ETag:           obj.ETag,
		Type:           t,
		LastModifiedAt: domain.TruncateToDay(modified),
		URI:            obj.Key,
		SizeBytes:      obj.Size,
	}, true
}
