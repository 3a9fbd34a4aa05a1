package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/openpmo/costcontrol/internal/repository"
)

var (
	// ErrValidation marks malformed input; the caller can correct and retry.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition marks an operation attempted from a state that
	// forbids it.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvariantViolation marks a cross-field or cross-aggregate rule that
	// would be broken by the write.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrNotFound marks a referenced aggregate that does not exist or is
	// soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyConflict marks a failed optimistic check; the caller
	// should reload and retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrDependencyBlocked marks a deletion or closure blocked by live
	// dependents.
	ErrDependencyBlocked = errors.New("blocked by dependents")
	// ErrPermissionDenied marks a caller lacking the role an operation
	// requires.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrPersistence wraps storage failures, kept distinct from domain
	// validation so callers can tell "input is wrong" from "could not record".
	ErrPersistence = errors.New("persistence failure")
)

// mapRepoErr translates repository errors into the domain taxonomy.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%w: aggregate was modified concurrently, reload and retry", ErrConcurrencyConflict)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
