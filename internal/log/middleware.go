package log

import (
	"context"
	"errors"
	"log/slog"

	"homepay/internal/core"
)

// ContextKey type for context keys
type ContextKey string

// LoggerContextKey is the context key for the logger
const LoggerContextKey ContextKey = "logger"

// NewContext stores logger in ctx
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to slog's default
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// ErrorType classifies an engine error for log aggregation.
func ErrorType(err error) string {
	var (
		ve *core.ValidationError
		ce *core.CapacityError
		fe *core.InsufficientFundsError
		ne *core.NotFoundError
		ae *core.AlreadyExistsError
	)
	switch {
	case errors.As(err, &ve):
		return ErrorTypeValidation
	case errors.As(err, &ce):
		return ErrorTypeCapacity
	case errors.As(err, &fe):
		return ErrorTypeFunds
	case errors.As(err, &ne):
		return ErrorTypeNotFound
	case errors.As(err, &ae), errors.Is(err, core.ErrDeclined):
		return ErrorTypeConflict
	default:
		return ErrorTypeInternal
	}
}

// LogOperation records the outcome of an engine operation. Expected
// outcomes (validation, not found, declined) log at warn, anything else at error.
func LogOperation(ctx context.Context, logger *Logger, op string, fields LogFields, err error) {
	fields = fields.WithOperation(op)
	if err == nil {
		logger.InfoContext(ctx, "Operation completed", fields.ToSlice()...)
		return
	}
	fields = fields.WithError(err)
	fields["error_type"] = ErrorType(err)
	if ErrorType(err) == ErrorTypeInternal {
		logger.ErrorContext(ctx, "Operation failed", fields.ToSlice()...)
		return
	}
	logger.WarnContext(ctx, "Operation rejected", fields.ToSlice()...)
}
