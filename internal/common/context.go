package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyPrincipal contextKey = "principal"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithPrincipal stores the authenticated caller identifier.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, principal)
}

// PrincipalFromContext returns the caller identifier, or "" when unauthenticated.
func PrincipalFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyPrincipal).(string); ok {
		return p
	}
	return ""
}
