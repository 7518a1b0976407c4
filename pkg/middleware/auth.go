package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"courtsync/pkg/logger"
)

// TokenAuth guards the control surface with a single shared bearer token,
// compared in constant time. An empty configured token disables the check so
// local development works without credentials.
func TokenAuth(token string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractBearerToken(r)
			if presented == "" {
				logAndReject(w, log, r, "Missing Authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logAndReject(w, log, r, "Invalid API token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if found {
		return token
	}

	return header
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Request authentication failed",
		"request_id", requestID(r),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"Unauthorized"}`))
}
