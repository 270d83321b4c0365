package services

import "context"

type contextKey string

const (
	landingIDKey contextKey = "landing_id"
	ownerIDKey   contextKey = "owner_id"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithLandingID annotates context with the generation session identifier.
func WithLandingID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, landingIDKey, id)
}

// LandingIDFromContext extracts the generation session identifier if present.
func LandingIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(landingIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOwnerID annotates context with the requesting user's identifier.
func WithOwnerID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, ownerIDKey, id)
}

// OwnerIDFromContext extracts the owner identifier if present.
func OwnerIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(ownerIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the pipeline phase name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
