package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// contextKey is a private type for context keys defined in this package
type contextKey string

const credentialKey contextKey = "credential"

// WithCredential stores the caller's bearer credential in the context
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey, credential)
}

// GetCredentialFromContext returns the caller's bearer credential, or an
// empty string when the caller sent none
func GetCredentialFromContext(ctx context.Context) string {
	if credential, ok := ctx.Value(credentialKey).(string); ok {
		return credential
	}
	return ""
}

// GetRequestIDFromContext returns the chi-assigned request ID
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}
