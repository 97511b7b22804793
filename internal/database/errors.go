package database

import (
	"errors"
	"fmt"
)

// Validation sentinels. These are raised before any write and surface to the
// caller unchanged; only genuine statement failures get wrapped in a
// DatabaseError.
var (
	ErrEntryNotFound         = errors.New("entry not found")
	ErrHistoryEntryNotFound  = errors.New("watch history entry not found")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrDuplicateEntry        = errors.New("anime is already in the library")
	ErrInvalidProgress       = errors.New("invalid progress value")
	ErrInvalidStatus         = errors.New("invalid watch status")
	ErrInvalidRating         = errors.New("rating must be between 1 and 10")
	ErrInvalidEpisodeNumber  = errors.New("episode number must be positive")
	ErrNegativeTotalEpisodes = errors.New("total episodes cannot be negative")
	ErrEmptyUpdate           = errors.New("no fields to update")
	ErrMissingFields         = errors.New("anime id and title are required")
	ErrDefaultCollection     = errors.New("default collections cannot be modified")
)

var validationErrors = []error{
	ErrEntryNotFound,
	ErrHistoryEntryNotFound,
	ErrCollectionNotFound,
	ErrDuplicateEntry,
	ErrInvalidProgress,
	ErrInvalidStatus,
	ErrInvalidRating,
	ErrInvalidEpisodeNumber,
	ErrNegativeTotalEpisodes,
	ErrEmptyUpdate,
	ErrMissingFields,
	ErrDefaultCollection,
}

// DatabaseError wraps a storage-level failure with the operation that caused
// it. The underlying cause is reachable through errors.Is/As.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// WrapOp wraps err in a DatabaseError named after op. Validation sentinels
// pass through unchanged so callers can match them with errors.Is.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &DatabaseError{Op: op, Err: err}
}

// IsValidationError reports whether err is one of the validation sentinels.
func IsValidationError(err error) bool {
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
