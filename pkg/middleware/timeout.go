package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// timeoutWriter suppresses handler writes once the deadline has passed,
// so a slow handler cannot corrupt the timeout response.
type timeoutWriter struct {
	http.ResponseWriter
	mu       sync.Mutex
	timedOut bool
	written  bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut || tw.written {
		return
	}
	tw.written = true
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	tw.written = true
	return tw.ResponseWriter.Write(b)
}

// timeoutResponse marks the writer timed out and, when the handler has
// not produced output yet, answers on its behalf.
func (tw *timeoutWriter) timeoutResponse() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.timedOut = true
	if tw.written {
		return
	}
	tw.written = true
	tw.ResponseWriter.Header().Set("Content-Type", "application/json")
	tw.ResponseWriter.WriteHeader(http.StatusServiceUnavailable)
	_, _ = tw.ResponseWriter.Write([]byte(`{"error":"Request timeout"}`))
}

// RequestTimeout bounds each request. The handler keeps running in its
// goroutine after the deadline but its writes are discarded; the sync
// trigger endpoint relies on this cap because a wedged scrape would
// otherwise hold the connection open indefinitely.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				tw.timeoutResponse()
			}
		})
	}
}
