package middleware

import (
	"net/http"
	"strings"

	"courtsync/pkg/logger"
)

// ContentTypeValidation rejects write requests whose body is not
// declared as JSON. GETs and empty bodies pass through untouched.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBodyMethod(r.Method) && r.ContentLength != 0 {
				media, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
				media = strings.TrimSpace(media)
				if media != "application/json" {
					log.Warn("Invalid Content-Type header",
						"request_id", requestID(r),
						"content_type", media,
						"path", r.URL.Path,
						"method", r.Method,
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json"}`))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasBodyMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
