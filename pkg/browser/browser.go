package browser

import (
	"context"
	"fmt"
)

// ObservedResponse is a network response captured from a tab while an
// observer is active.
type ObservedResponse struct {
	URL    string
	Status int64
	Body   []byte
}

// Page drives one browser tab. Implementations must tolerate concurrent
// cycles only through their owning SessionProvider; a Page itself is not
// safe for concurrent use.
type Page interface {
	// Navigate loads a URL in the tab, respecting the session's pacing.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the CSS selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error

	// HTML returns the tab's current rendered document.
	HTML(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression, unmarshalling the result into
	// out when out is non-nil.
	Evaluate(ctx context.Context, expression string, out any) error

	// Observe starts capturing network responses whose URL contains the
	// given fragment. The returned stop function ends the capture; callers
	// must invoke it.
	Observe(ctx context.Context, urlFragment string) (<-chan ObservedResponse, func(), error)

	// URL returns the tab's current location.
	URL(ctx context.Context) (string, error)
}

// SessionProvider hands out Pages bound to live tabs of an operator's
// browser. Tabs are matched by URL pattern and are never closed by the
// provider; the operator owns them.
type SessionProvider interface {
	GetPage(ctx context.Context, urlPattern string) (Page, error)
	Healthy(ctx context.Context) error
	Close() error
}

// UnavailableError reports that the browser endpoint or a required tab
// could not be reached.
type UnavailableError struct {
	Endpoint string
	Reason   string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("browser session unavailable at %s: %s: %v", e.Endpoint, e.Reason, e.Err)
	}
	return fmt.Sprintf("browser session unavailable at %s: %s", e.Endpoint, e.Reason)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
