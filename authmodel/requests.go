package authmodel

// LoginCredentials is the body of POST /auth/login.
type LoginCredentials struct {
	// Email identifies the account.
	// Required: Yes
	// Example: "a@b.com"
	Email string `json:"email" validate:"required,email"`

	// Password is sent in clear over TLS and never stored client side.
	// Required: Yes
	Password string `json:"password" validate:"required"`

	// RememberMe asks the API for a longer lived refresh token.
	// Required: No
	RememberMe bool `json:"rememberMe,omitempty"`
}

// RegistrationData is the body of POST /auth/register.
type RegistrationData struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	AcceptTerms     bool   `json:"acceptTerms,omitempty"`
}

// PasswordResetRequest is the body of POST /auth/password-reset.
type PasswordResetRequest struct {
	// Email of the account to reset. The API answers success whether or not it exists.
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetConfirmation is the body of POST /auth/password-reset-confirm.
type PasswordResetConfirmation struct {
	// Token is the one-time reset token delivered out of band.
	// Required: Yes
	Token string `json:"token" validate:"required"`

	// NewPassword replaces the current credential.
	// Required: Yes, at least 8 characters
	NewPassword string `json:"newPassword" validate:"required,min=8"`

	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"omitempty,eqfield=NewPassword"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,nefield=CurrentPassword"`
}

// RefreshTokenRequest is the body of POST /auth/refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest is the body of POST /auth/logout. An empty body is valid.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
