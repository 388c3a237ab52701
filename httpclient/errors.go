package httpclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies every failure the client can return.
type ErrorKind string

const (
	NetworkError ErrorKind = "NetworkError"
	TimeoutError ErrorKind = "TimeoutError"
	ServerError  ErrorKind = "ServerError"
	ClientError  ErrorKind = "ClientError"
	CancelError  ErrorKind = "CancelError"
	UnknownError ErrorKind = "UnknownError"
)

// Machine readable error codes carried in APIError.Code.
const (
	CodeNetwork     = "ERR_NETWORK"
	CodeTimeout     = "ETIMEDOUT"
	CodeBadResponse = "ERR_BAD_RESPONSE"
	CodeBadRequest  = "ERR_BAD_REQUEST"
	CodeCanceled    = "ERR_CANCELED"
	CodeUnknown     = "ERR_UNKNOWN"
)

// Default messages used when the failure carries no better description.
const (
	DefaultTimeoutMessage = "Request timed out"
	networkErrorMessage   = "Network error - no response received"
)

// APIError is the only error type returned by Client methods. Status is zero
// when no response was received.
type APIError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Status    int       `json:"status,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Retryable reports whether the default retry predicate would retry e.
func (e *APIError) Retryable() bool {
	return DefaultShouldRetry(e)
}

func newAPIError(kind ErrorKind, code, message string, status int, at time.Time) *APIError {
	if at.IsZero() {
		at = time.Now()
	}
	return &APIError{Kind: kind, Message: message, Status: status, Code: code, Timestamp: at}
}

// AsAPIError extracts an *APIError from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == kind
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
