package normalize

import (
	"errors"
	"fmt"

	"courtsync/pkg/model"
)

// NormalizationError explains why one raw record could not become a fact.
// Dropped records are counted against their source in the cycle report; they
// never fail the cycle.
type NormalizationError struct {
	Source model.Source
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s record dropped: %s", e.Source, e.Reason)
}

func AsNormalizationError(err error) (*NormalizationError, bool) {
	var nerr *NormalizationError
	if errors.As(err, &nerr) {
		return nerr, true
	}
	return nil, false
}
