package middleware

import (
	"net/http"
	"strings"
)

// BearerCredential extracts the caller's bearer credential into the request
// context. The gateway enforces no authentication policy of its own: the
// credential is opaque here and is forwarded verbatim to the resolved backend
// as that backend's own key. Requests without a credential pass through.
func BearerCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := extractBearerToken(r); token != "" {
			r = r.WithContext(WithCredential(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// extractBearerToken extracts the token from an "Authorization: Bearer X" header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
