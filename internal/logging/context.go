package logging

import (
	"context"
	"log/slog"

	"pressroom/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldSubjectID     = "subject_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldEventType     = "event_type"
	// FieldErrorHint tells the operator what to try next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what the user loses when a warning fires.
	FieldImpact = "impact"
	FieldAlert  = "alert"
)

// ContextFields turns the services.Scope on ctx into log attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeFrom(ctx)
	var fields []slog.Attr
	if scope.JobID != 0 {
		fields = append(fields, slog.Int64(FieldJobID, scope.JobID))
	}
	if scope.SubjectID != 0 {
		fields = append(fields, slog.Int64(FieldSubjectID, scope.SubjectID))
	}
	if scope.Stage != "" {
		fields = append(fields, slog.String(FieldStage, scope.Stage))
	}
	if scope.RequestID != "" {
		fields = append(fields, slog.String(FieldCorrelationID, scope.RequestID))
	}
	return fields
}

// WithContext returns logger with the scope fields of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(toArgs(fields)...)
	}
	return logger
}
