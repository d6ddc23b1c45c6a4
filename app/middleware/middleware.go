package appMiddleware

import (
	"mime"
	"net/http"

	"github.com/FACorreiaa/go-vacation-agent/internal/api"
)

// RequireJSON rejects request bodies that are not declared as JSON. Requests
// without a body (GET, HEAD, OPTIONS) pass through.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			next.ServeHTTP(w, r)
			return
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			api.ErrorResponse(w, r, http.StatusUnsupportedMediaType, "Content-Type header required, expected application/json")
			return
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			api.ErrorResponse(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
