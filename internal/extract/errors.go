package extract

import (
	"fmt"

	"courtsync/pkg/model"
)

// ExtractionError attributes a scrape failure to its source so a cycle can
// degrade to PARTIAL instead of failing outright.
type ExtractionError struct {
	Source model.Source
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func newExtractionError(source model.Source, err error) *ExtractionError {
	return &ExtractionError{Source: source, Err: err}
}
