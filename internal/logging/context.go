package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the identifier of one upload run.
	FieldRunID = "run_id"
	// FieldTaskIndex is the 1-based position of a task within its run.
	FieldTaskIndex = "task_index"
	// FieldTask is the destination name of the task being uploaded.
	FieldTask = "task"
	// FieldAttempt is the 1-based attempt number within a task.
	FieldAttempt = "attempt"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the failure kind decided at the error site.
	FieldErrorKind = "error_kind"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

type contextKey string

const (
	taskIndexKey contextKey = "task_index"
	taskKey      contextKey = "task"
	attemptKey   contextKey = "attempt"
)

// WithTask annotates ctx with the task position and destination name.
func WithTask(ctx context.Context, index int, name string) context.Context {
	ctx = context.WithValue(ctx, taskIndexKey, index)
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, taskKey, name)
}

// WithAttempt annotates ctx with the attempt number.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// TaskFromContext returns the task position and name if present.
func TaskFromContext(ctx context.Context) (int, string, bool) {
	index, ok := ctx.Value(taskIndexKey).(int)
	if !ok {
		return 0, "", false
	}
	name, _ := ctx.Value(taskKey).(string)
	return index, name, true
}

// AttemptFromContext returns the attempt number if present.
func AttemptFromContext(ctx context.Context) (int, bool) {
	attempt, ok := ctx.Value(attemptKey).(int)
	return attempt, ok
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if index, name, ok := TaskFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldTaskIndex, index))
		if name != "" {
			fields = append(fields, slog.String(FieldTask, name))
		}
	}
	if attempt, ok := AttemptFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldAttempt, attempt))
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
