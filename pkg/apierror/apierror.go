// Package apierror shapes dashboard failures into the JSON payload sent to
// partial-update requests. Causes stay in the logs.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Code is the machine-readable failure kind.
type Code string

const (
	CodeInternalError     Code = "INTERNAL_ERROR"
	CodeQueryTimeout      Code = "QUERY_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
)

// Error is a failure ready to be written to a client.
type Error struct {
	Status  int
	Code    Code
	Message string
	// Err is logged, never sent.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the wire form of an Error.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Write sends e as JSON. The request ID is echoed in the body and the
// X-Request-ID header when set.
func (e *Error) Write(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(Response{
		Error:     string(e.Code),
		Code:      e.Code,
		Message:   e.Message,
		RequestID: requestID,
	})
}

// ListFailed classifies a failed vulnerability list request. A store query
// cut off by the request deadline keeps its own code; the status is 500
// either way.
func ListFailed(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Status:  http.StatusInternalServerError,
			Code:    CodeQueryTimeout,
			Message: "The vulnerability list took too long to load",
			Err:     err,
		}
	}
	return InternalError(err)
}

// InternalError wraps err behind a generic message.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// RateLimitExceeded is returned once a client has used up its burst.
func RateLimitExceeded() *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimitExceeded,
		Message: "Too many dashboard requests, slow down",
	}
}
