package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

type BannedChecker interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
}

// RequireActive rejects banned accounts. Tokens issued before a ban
// stay syntactically valid, so the flag has to be checked per request.
func RequireActive(users BannedChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				unauthorized(w, "unauthorized")
				return
			}
			banned, err := users.IsBanned(r.Context(), userID)
			if err != nil {
				http.Error(w, "unable to verify account", http.StatusInternalServerError)
				return
			}
			if banned {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "account banned"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
