package services

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	entityPathKey contextKey = "entity_path"
)

// WithRequestID annotates context with a correlation identifier. The remote
// client forwards it as the X-Request-ID header.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithEntityPath annotates context with the canonical path of the entity an
// operation acts on.
func WithEntityPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, entityPathKey, path)
}

// EntityPathFromContext returns the entity path if present.
func EntityPathFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(entityPathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
