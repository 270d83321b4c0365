package logging

import (
	"context"
	"log/slog"

	"landing/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldLandingID identifies the generation session or persisted bundle.
	FieldLandingID = "landing_id"
	// FieldOwnerID identifies the user that owns a landing.
	FieldOwnerID = "owner_id"
	// FieldStage is the pipeline phase that emitted the line.
	FieldStage = "stage"
	// FieldChannelID is a progress hub channel name.
	FieldChannelID = "channel_id"
	// FieldConnID is a live connection identifier.
	FieldConnID = "conn_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorCode carries a services reason code.
	FieldErrorCode = "error_code"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.LandingIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldLandingID, id))
	}
	if owner, ok := services.OwnerIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldOwnerID, owner))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
