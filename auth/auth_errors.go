package auth

import (
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/pkg/errors"
)

const unknownErrorMessage = "Unknown error occurred"

// Contexts prefixed to the message recorded by Coordinator.Error.
const (
	loginFailed                = "Login failed"
	registrationFailed         = "Registration failed"
	passwordResetFailed        = "Password reset request failed"
	passwordResetConfirmFailed = "Password reset confirmation failed"
	passwordChangeFailed       = "Password change failed"
)

// ExtractErrorMessage returns the human readable part of err: the message of
// an API error, the field messages of a validation error, or the error text.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return unknownErrorMessage
	}

	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	var ve *ValidationError
	if errors.As(err, &ve) && len(ve.Messages) > 0 {
		return ve.Error()
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return unknownErrorMessage
}
