package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-client/authmodel"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// envelope is the {success, data, message} body every route answers with.
type envelope struct {
	Success bool                 `json:"success"`
	Data    any                  `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
	Error   *authmodel.ErrorBody `json:"error,omitempty"`
}

func respond(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

// apiError is a failure with a deliberate status and client facing message.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.code, e.message)
}

func newAPIError(status int, code, message string) *apiError {
	return &apiError{status: status, code: code, message: message}
}

var (
	errInvalidBody         = newAPIError(http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	errInvalidCredentials  = newAPIError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	errAccountDisabled     = newAPIError(http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
	errEmailTaken          = newAPIError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
	errInvalidRefreshToken = newAPIError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token")
	errInvalidResetToken   = newAPIError(http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired reset token")
	errWrongPassword       = newAPIError(http.StatusBadRequest, "INVALID_PASSWORD", "Current password is incorrect")
	errMissingBearer       = newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
	errInvalidAccessToken  = newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired access token")
)

// httpErrorHandler renders every failure as a {success:false} envelope.
// Unexpected errors are logged and hidden behind a generic message.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, message := s.resolveError(err, c)
	_ = c.JSON(status, envelope{
		Success: false,
		Message: message,
		Error:   &authmodel.ErrorBody{Code: code, Message: message},
	})
}

func (s *Server) resolveError(err error, c echo.Context) (int, string, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.code, ae.message
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, http.StatusText(he.Code), fmt.Sprintf("%v", he.Message)
	}

	if errors.Is(err, autherrors.ErrInvalidRequest) {
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	}

	s.logger.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}
