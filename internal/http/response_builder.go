// Package http is the portal's JSON API.
//
// This file holds the fluent builder every handler uses to write a response,
// so status codes, headers and the error envelope stay uniform.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"forum/internal/assistant"
	"forum/internal/core"
	"forum/internal/log"
	"forum/internal/sheets"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Created sets 201 and the Location of the new resource.
func (b *ResponseBuilder) Created(location string) *ResponseBuilder {
	return b.Status(http.StatusCreated).Header("Location", location)
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// ErrorResponse creates the standard error envelope.
func ErrorResponse(statusCode int, kind, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, log.ErrorTypeValidation, message)
}

func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, log.ErrorTypeInternal, "internal error")
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, log.ErrorTypeRateLimit, "rate limit exceeded, please try again later")
}

// classify maps an error to its status code and kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, log.ErrorTypeConflict
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, log.ErrorTypeStoreUnavailable
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable, log.ErrorTypeConfiguration
	case errors.Is(err, assistant.ErrUnavailable):
		return http.StatusServiceUnavailable, log.ErrorTypeAssistant
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

// writeError is the single place where service errors become HTTP responses.
// Internal errors are logged and their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		ctx := r.Context()
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err, r.Pattern,
			log.NewFields().
				WithErrorType(kind).
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		InternalServerError().Write(w)
		return
	}
	ErrorResponse(status, kind, err.Error()).Write(w)
}
