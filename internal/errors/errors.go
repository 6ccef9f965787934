package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Token errors
	ErrNoAccessToken     = errors.New("no access token available")
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrMalformedToken    = errors.New("malformed token")
	ErrRefreshSuperseded = errors.New("refresh superseded by a newer session change")

	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")

	// Storage errors
	ErrNotFound = errors.New("not found")

	// Broadcast errors
	ErrChannelClosed      = errors.New("channel closed")
	ErrChannelUnavailable = errors.New("channel unavailable")

	// Request errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

