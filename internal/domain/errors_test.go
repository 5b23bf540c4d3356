package domain

import (
	"context"
	"errors"
	"testing"
)

func TestInvalidSelection(t *testing.T) {
	t.Parallel()

	err := NewInvalidSelection("unknown type %q", "track")

	if got := err.Error(); got != `invalid selection: unknown type "track"` {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, ErrInvalidSelection) {
		t.Fatal("errors.Is(err, ErrInvalidSelection) = false")
	}
}

func TestSnapshotNotFoundError_Cause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := error(&SnapshotNotFoundError{VersionTag: "abc", Err: cause})

	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatal("errors.Is(err, ErrSnapshotNotFound) = false")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is(err, cause) = false")
	}
	if got := err.Error(); got != "dump of version tag abc not found: connection reset" {
		t.Fatalf("unexpected Error(): %q", got)
	}

	// A not-found cause adds nothing to the message.
	quiet := &SnapshotNotFoundError{Year: 2011, Month: 2, Err: ErrNotFound}
	if got := quiet.Error(); got != "no dump found at or before 2011-2" {
		t.Fatalf("unexpected Error(): %q", got)
	}
}

func TestStepError(t *testing.T) {
	t.Parallel()

	err := error(&StepError{Type: EntityTypeRelease, VersionTag: "e1", Stage: "commit", Err: context.Canceled})

	if got := err.Error(); got != "load release (version tag e1) failed at commit: context canceled" {
		t.Fatalf("unexpected Error(): %q", got)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatal("errors.Is(err, context.Canceled) = false")
	}
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatal("errors.As(*StepError) = false")
	}
	if se.Stage != "commit" {
		t.Fatalf("Stage = %q, want commit", se.Stage)
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrNotFound, ErrAlreadyExists, ErrValidation,
		ErrInvalidSelection, ErrSnapshotNotFound, ErrAlreadyInverted,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel errors %d and %d should not match", i, j)
			}
		}
	}
}
