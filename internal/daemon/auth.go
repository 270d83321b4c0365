package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"landing/internal/services"
)

// authMiddleware validates bearer tokens. If token is empty, no
// authentication is required and all requests pass through. Otherwise
// requests must include "Authorization: Bearer <token>". Browsers cannot set
// headers on a WebSocket upgrade, so /ws may pass ?access_token= instead.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok && r.URL.Path == "/ws" {
				supplied, ok = r.URL.Query().Get("access_token"), true
			}
			if !ok || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized", "UNAUTHORIZED"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ownerFrom reads the caller's owner id from X-Owner-Id, falling back to the
// owner_id query parameter for WebSocket upgrades.
func ownerFrom(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("X-Owner-Id"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("owner_id"))
	}
	if raw == "" {
		return 0, services.Wrap(services.ErrValidation, "api", "owner", "X-Owner-Id header is required", nil)
	}
	return parseOwner(raw)
}
