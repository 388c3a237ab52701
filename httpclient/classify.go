package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Failure describes one failed attempt as seen by Classify.
type Failure struct {
	// Ctx is the caller's context; cancellation takes precedence over everything else.
	Ctx context.Context
	// Err is the error returned by the transport or the request pipeline.
	Err error
	// Response is set when the gateway answered with a non-2xx status.
	Response *Response
	// Transport marks Err as coming from the round trip itself.
	Transport bool
	// TimeoutMessage overrides DefaultTimeoutMessage.
	TimeoutMessage string
	// At is the classification time; zero means now.
	At time.Time
}

// Classify maps a failed attempt onto exactly one ErrorKind:
//
//  1. cancelled by the caller: CancelError, even if a response arrived
//  2. a response was received: ServerError for 5xx, ClientError otherwise
//  3. no response and the deadline passed: TimeoutError
//  4. no response from the transport: NetworkError
//  5. anything else (request building, encoding, decoding): UnknownError
func Classify(f Failure) *APIError {
	if isCancelled(f) {
		return newAPIError(CancelError, CodeCanceled, "Request canceled", 0, f.At)
	}

	if f.Response != nil {
		status := f.Response.StatusCode
		message := serverMessage(f.Response.Body)
		if message == "" {
			message = fmt.Sprintf("Request failed with status code %d", status)
		}
		if status >= 500 {
			return newAPIError(ServerError, CodeBadResponse, message, status, f.At)
		}
		return newAPIError(ClientError, CodeBadRequest, message, status, f.At)
	}

	if isTimeout(f.Err) || (f.Ctx != nil && errors.Is(f.Ctx.Err(), context.DeadlineExceeded)) {
		message := f.TimeoutMessage
		if message == "" {
			message = DefaultTimeoutMessage
		}
		return newAPIError(TimeoutError, CodeTimeout, message, 0, f.At)
	}

	if f.Transport {
		return newAPIError(NetworkError, CodeNetwork, networkErrorMessage, 0, f.At)
	}

	message := "Unknown error"
	if f.Err != nil {
		message = f.Err.Error()
	}
	return newAPIError(UnknownError, CodeUnknown, message, 0, f.At)
}

func isCancelled(f Failure) bool {
	if f.Ctx != nil && errors.Is(f.Ctx.Err(), context.Canceled) {
		return true
	}
	return errors.Is(f.Err, context.Canceled)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// serverMessage extracts a human readable message from an error body. It
// understands {"message": "..."} and the gateway envelope's "Error" field.
func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"Error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
