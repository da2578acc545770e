package auth

import (
	"encoding/json"
	"net/http"
)

const (
	apiKeyHeader     = "X-Api-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware returns an http.Handler middleware that enforces authentication.
// In open mode (no keys configured), all requests pass through.
// Otherwise, checks the X-Api-Key header and the api-key query param.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.Header.Get(apiKeyHeader); key != "" && s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		if key := r.URL.Query().Get(apiKeyQueryParam); key != "" && s.VerifyKey(key) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "UNAUTHORIZED",
			"message": "authentication required",
		})
	})
}
