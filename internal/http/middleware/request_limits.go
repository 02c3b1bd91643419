package middleware

import (
	"net/http"
)

// RequestSizeLimit creates middleware that limits the maximum request body
// size. Handlers see *http.MaxBytesError when a body exceeds the limit.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
