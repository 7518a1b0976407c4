package errors

import "errors"

var (
	// ErrCycleInProgress means a trigger arrived while a cycle was running.
	// Triggers are rejected, never queued.
	ErrCycleInProgress = errors.New("a sync cycle is already running")

	ErrCycleNotFound = errors.New("sync cycle not found")
)
