package server

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const issuer = "sakai-mock-api"

func (s *Server) LoginHandler(c echo.Context) error {
	var req authmodel.LoginCredentials
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account, err := s.users.GetByEmail(req.Email)
	if err != nil || !users.CheckPasswordHash(req.Password, account.PasswordHash) {
		return errInvalidCredentials
	}
	if !account.User.IsActive {
		return errAccountDisabled
	}

	account.User = *account.User.Apply(users.Update{LastLoginAt: utils.Ptr(s.nowFunc())})
	if err := s.users.Upsert(account); err != nil {
		return errors.Wrap(err, "[LoginHandler] users.Upsert")
	}

	resp, err := s.issueTokens(&account.User, req.RememberMe)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, resp, "Login successful")
}

func (s *Server) RegisterHandler(c echo.Context) error {
	var req authmodel.RegistrationData
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return newAPIError(http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	}
	if _, err := s.users.GetByEmail(req.Email); err == nil {
		return errEmailTaken
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return errors.Wrap(err, "[RegisterHandler] users.HashPassword")
	}
	now := s.nowFunc()
	account := &users.Account{
		User: users.User{
			Email:       normaliseEmail(req.Email),
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Roles:       []string{users.RoleUser},
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
			LastLoginAt: now,
		},
		PasswordHash: hash,
	}
	if err := s.users.Upsert(account); err != nil {
		return errors.Wrap(err, "[RegisterHandler] users.Upsert")
	}

	resp, err := s.issueTokens(&account.User, false)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, resp, "Registration successful")
}

func (s *Server) RefreshHandler(c echo.Context) error {
	var req authmodel.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	grant, ok := s.grants.consumeRefresh(req.RefreshToken, s.nowFunc())
	if !ok {
		return errInvalidRefreshToken
	}
	account, err := s.users.GetByID(grant.userID)
	if err != nil || !account.User.IsActive {
		return errInvalidRefreshToken
	}

	resp, err := s.issueTokens(&account.User, false)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, authmodel.RefreshTokenResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
	}, "")
}

// LogoutHandler revokes the refresh token in the body, if any. It never fails
// for an unknown token.
func (s *Server) LogoutHandler(c echo.Context) error {
	var req authmodel.LogoutRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if req.RefreshToken != "" {
		s.grants.revokeRefresh(req.RefreshToken)
	}
	return respond(c, http.StatusOK, nil, "Logged out")
}

func (s *Server) LogoutAllHandler(c echo.Context) error {
	account := accountFrom(c)
	revoked := s.grants.revokeUser(account.User.ID)
	s.logger.Info().Str("userId", account.User.ID).Int("revoked", revoked).Msg("All sessions revoked")
	return respond(c, http.StatusOK, nil, "Logged out from all sessions")
}

func (s *Server) ProfileHandler(c echo.Context) error {
	return respond(c, http.StatusOK, accountFrom(c).User, "")
}

// PasswordResetHandler answers the same way whether or not the email exists.
func (s *Server) PasswordResetHandler(c echo.Context) error {
	var req authmodel.PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if account, err := s.users.GetByEmail(req.Email); err == nil {
		token := s.grants.issueReset(account.User.Email, s.nowFunc().Add(resetTokenTTL))
		s.logger.Debug().Str("email", account.User.Email).Str("token", token).Msg("Password reset token issued")
	}
	return respond(c, http.StatusOK, nil, "If the email exists, a reset link has been sent")
}

func (s *Server) PasswordResetConfirmHandler(c echo.Context) error {
	var req authmodel.PasswordResetConfirmation
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := users.ValidatePasswordStrength(req.NewPassword); err != nil {
		return newAPIError(http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	}

	email, ok := s.grants.consumeReset(req.Token, s.nowFunc())
	if !ok {
		return errInvalidResetToken
	}
	account, err := s.users.GetByEmail(email)
	if err != nil {
		return errInvalidResetToken
	}
	if err := s.setPassword(account, req.NewPassword); err != nil {
		return err
	}
	s.grants.revokeUser(account.User.ID)
	return respond(c, http.StatusOK, nil, "Password has been reset")
}

func (s *Server) ChangePasswordHandler(c echo.Context) error {
	var req authmodel.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	account := accountFrom(c)
	if !users.CheckPasswordHash(req.CurrentPassword, account.PasswordHash) {
		return errWrongPassword
	}
	if err := users.ValidatePasswordStrength(req.NewPassword); err != nil {
		return newAPIError(http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
	}
	if err := s.setPassword(account, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil, "Password changed")
}

func (s *Server) setPassword(account *users.Account, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Server.setPassword] users.HashPassword")
	}
	if err := s.users.SetPasswordHash(account.User.Email, hash); err != nil {
		return errors.Wrap(err, "[Server.setPassword] users.SetPasswordHash")
	}
	return nil
}

// issueTokens mints an access JWT and a fresh single use refresh token.
func (s *Server) issueTokens(user *users.User, rememberMe bool) (*authmodel.AuthResponse, error) {
	now := s.nowFunc()
	ttl := s.config.GetAccessTokenTTL()

	access, err := s.signer.Sign(jwt.MapClaims{
		"iss":   issuer,
		"sub":   user.ID,
		"email": user.Email,
		"roles": user.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
		"jti":   uuid.NewString(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Server.issueTokens] signer.Sign")
	}

	refreshTTL := refreshTokenTTL
	if rememberMe {
		refreshTTL = rememberMeRefreshTokenTTL
	}
	refresh := s.grants.issueRefresh(user.ID, now.Add(refreshTTL))

	return &authmodel.AuthResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(ttl.Seconds()),
		User:         *user.Clone(),
	}, nil
}
