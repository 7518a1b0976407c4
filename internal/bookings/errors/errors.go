package errors

import "errors"

var (
	ErrNotFound = errors.New("booking attempt not found")

	// ErrSlotHeld means another request holds the advisory lock for the
	// slot right now.
	ErrSlotHeld = errors.New("slot is already being booked")
)
