package authmodel

import (
	"encoding/json"

	"github.com/jrsteele09/go-auth-client/users"
)

// AuthResponse is the data of a successful login or registration.
type AuthResponse struct {
	// AccessToken is the short lived bearer JWT.
	// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."
	// Storage: memory only
	AccessToken string `json:"accessToken"`

	// RefreshToken is the opaque credential used to mint new access tokens.
	// Storage: tab scoped durable storage
	RefreshToken string `json:"refreshToken"`

	// ExpiresIn is a hint in seconds; the JWT exp claim is authoritative.
	ExpiresIn int `json:"expiresIn,omitempty"`

	User users.User `json:"user"`
}

// RefreshTokenResponse is the data of a successful refresh.
// The refresh token rotates on every call.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

// Envelope wraps every API response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the nested error detail of a failed response.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
