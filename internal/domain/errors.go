package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")

	// ErrInvalidSelection marks a malformed or self-contradictory selection request.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrSnapshotNotFound marks a dump that does not exist even after fallback search.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrAlreadyInverted is returned when an existence cache type is inverted twice.
	ErrAlreadyInverted = errors.New("already inverted")
)

// SnapshotNotFoundError names the dump that could not be resolved: either a
// version tag, or a (type, year, month) triple.
type SnapshotNotFoundError struct {
	VersionTag string
	Type       EntityType
	Year       int
	Month      int
	Err        error
}

func (e *SnapshotNotFoundError) Error() string {
	var msg string
	switch {
	case e.VersionTag != "":
		msg = fmt.Sprintf("dump of version tag %s not found", e.VersionTag)
	case e.Type != "":
		msg = fmt.Sprintf("dump with type %s under %d-%d not found", e.Type, e.Year, e.Month)
	default:
		msg = fmt.Sprintf("no dump found at or before %d-%d", e.Year, e.Month)
	}
	if e.Err != nil && !errors.Is(e.Err, ErrNotFound) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SnapshotNotFoundError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSnapshotNotFound}
	}
	return []error{ErrSnapshotNotFound, e.Err}
}

// StepError is a fatal failure of one pipeline load step.
type StepError struct {
	Type       EntityType
	VersionTag string
	Stage      string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("load %s (version tag %s) failed at %s: %v", e.Type, e.VersionTag, e.Stage, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewInvalidSelection returns an error wrapping ErrInvalidSelection.
func NewInvalidSelection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSelection, fmt.Sprintf(format, args...))
}
