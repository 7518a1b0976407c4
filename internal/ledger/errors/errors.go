package errors

import (
	"errors"
	"fmt"

	"courtsync/pkg/model"
)

var (
	ErrNotFound = errors.New("ledger entry not found")

	ErrInvalidID = errors.New("invalid ledger entry ID format")

	// ErrLocked means the panic lock is engaged; nothing may mutate the
	// ledger until it is released.
	ErrLocked = errors.New("ledger is locked")
)

// StaleVersionError reports that a mutation expected a version the stored
// entry no longer has. One stale entry never aborts the rest of a batch;
// the slot is simply retried on the next cycle.
type StaleVersionError struct {
	Key             model.SlotKey
	ExpectedVersion int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale write for slot %s: expected version %d", e.Key, e.ExpectedVersion)
}

func IsStaleVersion(err error) bool {
	var stale *StaleVersionError
	return errors.As(err, &stale)
}
