package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/pkg/errors"
)

const (
	// UnknownErrorCode is used when no HTTP status is available.
	UnknownErrorCode = "UNKNOWN_ERROR"

	defaultErrorMessage    = "An unexpected error occurred"
	defaultEnvelopeMessage = "API request failed"
)

// APIError is the normalized shape of every failed gateway call.
type APIError struct {
	// Code is the HTTP status as a string, or UNKNOWN_ERROR.
	Code string `json:"code"`
	// Message is the most specific human readable message available.
	Message string `json:"message"`
	// StatusCode is 0 for network failures, timeouts and rejected envelopes.
	StatusCode int `json:"statusCode"`
	// Timestamp is RFC3339 in UTC.
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	// Rejected marks a success:false envelope on a 2xx response.
	Rejected bool `json:"rejected,omitempty"`

	Err error `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry. Network
// failures, timeouts and 5xx responses are transient; rejected envelopes are not.
func (e *APIError) Transient() bool {
	return !e.Rejected && shouldRetry(e.StatusCode)
}

func shouldRetry(status int) bool {
	if status == 0 {
		return true
	}
	return status >= http.StatusInternalServerError && status < 600
}

func newAPIError(cause error, status int, body []byte, path string, now time.Time) *APIError {
	code := UnknownErrorCode
	if status != 0 {
		code = strconv.Itoa(status)
	}

	message := bodyMessage(body)
	if message == "" && cause != nil {
		message = cause.Error()
	}
	if message == "" {
		message = defaultErrorMessage
	}

	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: status,
		Timestamp:  now.UTC().Format(time.RFC3339),
		Path:       path,
		Err:        cause,
	}
}

// bodyMessage reads message, then error.message, from an error body.
func bodyMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var env authmodel.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	if env.Error != nil {
		return env.Error.Message
	}
	return ""
}

func statusError(method, url string, status int) error {
	return errors.Errorf("http failure response for %s %s: %d %s", method, url, status, http.StatusText(status))
}
