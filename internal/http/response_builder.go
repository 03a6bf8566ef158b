// Package http serves the household operations as a JSON API.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps engine errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"homepay/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// errorBody is the payload of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Months []int  `json:"months,omitempty"`
	// Question is set on 428 responses.
	Question string `json:"question,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ConfirmationRequired creates a 428 response carrying the pending question.
func ConfirmationRequired(question string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusPreconditionRequired).Body(errorBody{
		Error:    "confirmation required",
		Question: question,
	})
}

// FromError maps an engine error to its response. Unknown errors are 500
// with a generic message; the detail is only logged.
func FromError(err error) *JSONResponseBuilder {
	var (
		pending *pendingConfirmation
		ve      *core.ValidationError
		ne      *core.NotFoundError
		ae      *core.AlreadyExistsError
		ce      *core.CapacityError
		fe      *core.InsufficientFundsError
	)
	switch {
	case errors.As(err, &pending):
		return ConfirmationRequired(pending.question)
	case errors.As(err, &ve):
		return NewJSONResponse().Status(http.StatusBadRequest).Body(errorBody{Error: ve.Reason, Field: ve.Field})
	case errors.As(err, &ne):
		return NotFoundError(ne.Error())
	case errors.As(err, &ae):
		return NewJSONResponse().Status(http.StatusConflict).Body(errorBody{Error: ae.Error(), Months: ae.Months})
	case errors.Is(err, core.ErrDeclined):
		return ErrorResponse(http.StatusConflict, "declined")
	case errors.As(err, &ce):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(errorBody{Error: ce.Error(), Months: ce.Months})
	case errors.As(err, &fe):
		return ErrorResponse(http.StatusUnprocessableEntity, fe.Error())
	default:
		return InternalServerError("internal error")
	}
}
