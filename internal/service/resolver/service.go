// Package resolver turns a selection request into the dependency-complete set
// of dumps a load must process.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// DefaultFloorYear is the year at or below which the backward period search
// stops. Dumps are not published before it.
const DefaultFloorYear = 2010

// catalogRepo answers dump lookups. An absent dump is reported as
// domain.ErrNotFound.
type catalogRepo interface {
	GetByETag(ctx context.Context, etag string) (domain.Dump, error)
	GetMostRecentByTypePeriod(ctx context.Context, t domain.EntityType, p domain.Period) (domain.Dump, error)
	GetAllByTypesPeriod(ctx context.Context, types []domain.EntityType, p domain.Period) ([]domain.Dump, error)
}

// Service resolves selections against the dump catalog. Catalog calls are
// issued one at a time.
type Service struct {
	log       *slog.Logger
	catalog   catalogRepo
	floorYear int
	now       func() time.Time
}

// NewService creates a resolver. A non-positive floorYear selects DefaultFloorYear.
func NewService(log *slog.Logger, catalog catalogRepo, floorYear int) *Service {
	if floorYear <= 0 {
		floorYear = DefaultFloorYear
	}
	return &Service{
		log:       log.With("service", "resolver"),
		catalog:   catalog,
		floorYear: floorYear,
		now:       time.Now,
	}
}

// ResolveArgs parses args against the current UTC date and resolves them.
func (s *Service) ResolveArgs(ctx context.Context, args domain.SelectionArgs) (domain.ResolvedSet, error) {
	sel, err := ParseSelection(args, s.now())
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, sel)
}
