// Package extract turns the operator's live browser session into raw slot
// records, one strategy per source platform.
package extract

import (
	"context"
	"time"

	"courtsync/pkg/browser"
	"courtsync/pkg/model"
)

// Request asks an extractor for one calendar date. Sports narrows the scrape
// to specific board sports where the source supports that; empty means all.
type Request struct {
	Date   string
	Sports []string
}

// Extractor reads one source platform through a browser session handle.
// Extraction is read-only: it may navigate and drive page controls but never
// performs a booking action. Zero records is a valid result.
type Extractor interface {
	Source() model.Source
	Extract(ctx context.Context, session browser.SessionProvider, requests []Request) ([]model.RawRecord, error)
}

// settle waits out a UI re-render without ignoring cancellation.
func settle(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
