package server

import (
	"strings"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
)

// contextKeyAccount stores the account of a verified bearer token.
const contextKeyAccount = "account"

// RequireAuth is middleware that validates a Bearer access token
// and loads the account it was issued to.
func (s *Server) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			return errMissingBearer
		}

		claims, err := s.signer.Verify(raw)
		if err != nil {
			return errInvalidAccessToken
		}
		userID, err := claims.GetSubject()
		if err != nil || userID == "" {
			return errInvalidAccessToken
		}
		account, err := s.users.GetByID(userID)
		if err != nil || !account.User.IsActive {
			return errInvalidAccessToken
		}

		c.Set(contextKeyAccount, account)
		return next(c)
	}
}

func accountFrom(c echo.Context) *users.Account {
	account, _ := c.Get(contextKeyAccount).(*users.Account)
	return account
}
