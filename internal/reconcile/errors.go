package reconcile

import (
	"errors"
	"fmt"

	"courtsync/pkg/model"
)

// ReconciliationError is a data-integrity fault in the incoming facts. It is
// fatal to the cycle: no mutation set is produced and nothing is applied.
type ReconciliationError struct {
	Key    model.SlotKey
	Reason string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciling %s: %s", e.Key.String(), e.Reason)
}

func AsReconciliationError(err error) (*ReconciliationError, bool) {
	var rerr *ReconciliationError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}
