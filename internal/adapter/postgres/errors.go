package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// Constraint violations that carry a domain meaning for catalog and staging
// writes. A missing referent (23503) reads as the referenced id not existing.
var constraintErrors = map[string]error{
	"23505": domain.ErrAlreadyExists, // unique_violation
	"23503": domain.ErrNotFound,      // foreign_key_violation
	"23514": domain.ErrValidation,    // check_violation
}

// MapError prefixes err with the table or entity and the key involved and
// translates no-rows and constraint violations into domain sentinels.
// Cancellation keeps its context error so callers can tell an abort from a
// failed statement.
func MapError(err error, entity, key string) error {
	if err == nil {
		return nil
	}
	wrap := func(cause error) error { return fmt.Errorf("%s %s: %w", entity, key, cause) }

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return wrap(err)
	case errors.Is(err, pgx.ErrNoRows):
		return wrap(domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if sentinel, ok := constraintErrors[pgErr.Code]; ok {
			return wrap(sentinel)
		}
	}
	return wrap(err)
}
