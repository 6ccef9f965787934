package server

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs and verifies the access tokens the stand-in API issues.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
	Verify(raw string) (jwt.MapClaims, error)
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACSigner creates a signer whose expiry checks use now.
func NewHMACSigner(secret string, now func() time.Time) *HMACSigner {
	if now == nil {
		now = time.Now
	}
	return &HMACSigner{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *HMACSigner) Verify(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := h.parser.ParseWithClaims(raw, claims, h.verificationKey)
	if err != nil {
		return nil, errors.Wrap(err, "[HMACSigner.Verify] ParseWithClaims")
	}
	return claims, nil
}

func (h *HMACSigner) verificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
