package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// Resolve returns the dumps to load for sel. Errors are either
// domain.ErrInvalidSelection or a *domain.SnapshotNotFoundError.
func (s *Service) Resolve(ctx context.Context, sel domain.Selection) (domain.ResolvedSet, error) {
	if sel.ByVersionTags() {
		if sel.Strict {
			return s.resolveStrictTags(ctx, sel.VersionTags), nil
		}
		return s.resolveTags(ctx, sel.VersionTags)
	}
	if len(sel.Types) == 0 {
		return nil, domain.NewInvalidSelection("no entity types selected")
	}
	return s.resolvePeriod(ctx, sel.Types, sel.Period)
}

// resolveStrictTags fetches each tag on its own; unknown tags are logged and
// dropped. No dependency expansion happens.
func (s *Service) resolveStrictTags(ctx context.Context, tags []string) domain.ResolvedSet {
	s.log.InfoContext(ctx, "strict selection, skipping dependency resolution", slog.Int("tags", len(tags)))

	set := make(domain.ResolvedSet, len(tags))
	for _, tag := range tags {
		d, err := s.getByTag(ctx, tag)
		if err != nil {
			s.log.ErrorContext(ctx, "dropping version tag", slog.String("etag", tag), slog.String("error", err.Error()))
			continue
		}
		if prev, ok := set[d.Type]; ok {
			s.log.WarnContext(ctx, "dropping version tag, type already selected",
				slog.String("etag", tag),
				slog.String("type", d.Type.String()),
				slog.String("selected_etag", prev.ETag),
			)
			continue
		}
		set[d.Type] = d
	}
	return set
}

// resolveTags fetches every tag, requires them to share one period, and fills
// in the most recent dump of that period for each missing dependency.
func (s *Service) resolveTags(ctx context.Context, tags []string) (domain.ResolvedSet, error) {
	set := make(domain.ResolvedSet, len(domain.EntityTypes))
	var (
		period   domain.Period
		required []domain.EntityType
	)

	for i, tag := range tags {
		d, err := s.getByTag(ctx, tag)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			period = d.Period()
		} else if d.Period() != period {
			return nil, domain.NewInvalidSelection("eTags must be from the same year and month")
		}
		required = append(required, d.Type.Dependencies()...)
		set[d.Type] = d
	}

	for _, t := range domain.SortEntityTypes(required) {
		if _, ok := set[t]; ok {
			continue
		}
		d, err := s.catalog.GetMostRecentByTypePeriod(ctx, t, period)
		if err != nil {
			return nil, &domain.SnapshotNotFoundError{Type: t, Year: period.Year, Month: period.Month, Err: err}
		}
		set[t] = d
	}
	return set, nil
}

func (s *Service) getByTag(ctx context.Context, tag string) (domain.Dump, error) {
	d, err := s.catalog.GetByETag(ctx, tag)
	if err != nil {
		return domain.Dump{}, &domain.SnapshotNotFoundError{VersionTag: tag, Err: err}
	}
	return d, nil
}

// resolvePeriod queries all types at the target period and walks back one
// month at a time while the year stays above the floor. Only an absent result
// triggers a retry; any other catalog failure ends the search.
func (s *Service) resolvePeriod(ctx context.Context, types []domain.EntityType, target domain.Period) (domain.ResolvedSet, error) {
	s.log.InfoContext(ctx, "finding dumps",
		slog.String("period", target.String()),
		slog.Any("types", types),
	)

	for {
		set, err := s.allAt(ctx, types, target)
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, domain.ErrNotFound) || target.Year <= s.floorYear {
			return nil, &domain.SnapshotNotFoundError{Year: target.Year, Month: target.Month, Err: err}
		}
		target = target.Previous()
		s.log.InfoContext(ctx, "retrying dump search",
			slog.String("period", target.String()),
			slog.Any("types", types),
		)
	}
}

// allAt returns a set covering every type at p, or domain.ErrNotFound when any
// of them is missing.
func (s *Service) allAt(ctx context.Context, types []domain.EntityType, p domain.Period) (domain.ResolvedSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dumps, err := s.catalog.GetAllByTypesPeriod(ctx, types, p)
	if err != nil {
		return nil, err
	}
	byType := make(map[domain.EntityType]domain.Dump, len(dumps))
	for _, d := range dumps {
		byType[d.Type] = d
	}
	set := make(domain.ResolvedSet, len(types))
	for _, t := range types {
		d, ok := byType[t]
		if !ok {
			return nil, fmt.Errorf("dump with type %s under %s: %w", t, p, domain.ErrNotFound)
		}
		set[t] = d
	}
	return set, nil
}
