package token

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultRefreshTokenKey is the durable storage key of the refresh token.
	DefaultRefreshTokenKey = "refresh_token"
	// DefaultExpiryBuffer treats a token as expired this long before its exp claim,
	// so a request is not sent with a token that expires in flight.
	DefaultExpiryBuffer = 30 * time.Second
)

// Store holds the token pair for one tab.
//
// The access token lives only in memory and is lost with the process. The
// refresh token is written to the tab scoped refresh.Repo so a reload can
// restore the session. Tokens are decoded, never verified: only the issuing
// server can make trust decisions about them.
type Store struct {
	refreshRepo  refresh.Repo
	refreshKey   string
	expiryBuffer time.Duration
	nowFunc      func() time.Time
	logger       zerolog.Logger
	parser       *jwt.Parser

	lock        sync.RWMutex
	accessToken string
}

type StoreOption func(*Store)

func WithRefreshTokenKey(key string) StoreOption {
	return func(s *Store) {
		s.refreshKey = key
	}
}

func WithExpiryBuffer(buffer time.Duration) StoreOption {
	return func(s *Store) {
		s.expiryBuffer = buffer
	}
}

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo refresh.Repo, options ...StoreOption) *Store {
	s := &Store{
		refreshRepo:  repo,
		refreshKey:   DefaultRefreshTokenKey,
		expiryBuffer: DefaultExpiryBuffer,
		nowFunc:      time.Now,
		logger:       log.Logger,
		parser:       jwt.NewParser(jwt.WithPaddingAllowed()),
	}

	for _, opt := range options {
		opt(s)
	}
	return s
}

// SetAccessToken replaces the in-memory access token. Empty tokens are ignored.
func (s *Store) SetAccessToken(token string) {
	if token == "" {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accessToken = token
}

func (s *Store) AccessToken() (string, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.accessToken, s.accessToken != ""
}

// SetRefreshToken writes the refresh token to durable storage. Empty tokens
// are ignored and storage failures are logged, never returned.
func (s *Store) SetRefreshToken(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := s.refreshRepo.Set(ctx, s.refreshKey, token); err != nil {
		s.logger.Err(err).Msg("Refresh token storage failed")
	}
}

// RefreshToken reads the refresh token from durable storage.
func (s *Store) RefreshToken(ctx context.Context) (string, bool) {
	v, err := s.refreshRepo.Get(ctx, s.refreshKey)
	if err != nil {
		if !autherrors.Is(err, autherrors.ErrNotFound) {
			s.logger.Err(err).Msg("Refresh token retrieval failed")
		}
		return "", false
	}
	return v, v != ""
}

// Clear drops the access token and removes the durable refresh token.
func (s *Store) Clear(ctx context.Context) {
	s.lock.Lock()
	s.accessToken = ""
	s.lock.Unlock()

	if err := s.refreshRepo.Delete(ctx, s.refreshKey); err != nil {
		s.logger.Err(err).Msg("Token clear failed")
	}
}

func (s *Store) HasToken() bool {
	_, ok := s.AccessToken()
	return ok
}

func (s *Store) HasRefreshToken(ctx context.Context) bool {
	_, ok := s.RefreshToken(ctx)
	return ok
}

// Decode returns the payload of a three segment JWT without verifying it.
// Any structural failure yields false.
func (s *Store) Decode(raw string) (jwt.MapClaims, bool) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, false
	}

	segment, err := s.parser.DecodeSegment(parts[1])
	if err != nil {
		s.logger.Err(autherrors.Wrapf(autherrors.ErrMalformedToken, "[Store.Decode] payload segment: %v", err)).Msg("Token decode failed")
		return nil, false
	}

	var claims jwt.MapClaims
	if err := json.Unmarshal(segment, &claims); err != nil {
		s.logger.Err(autherrors.Wrapf(autherrors.ErrMalformedToken, "[Store.Decode] payload json: %v", err)).Msg("Token decode failed")
		return nil, false
	}
	if claims == nil {
		return nil, false
	}
	return claims, true
}

// IsTokenExpired is true when there is no access token, it has no exp claim,
// or now is within the expiry buffer of exp.
func (s *Store) IsTokenExpired() bool {
	exp, ok := s.Expiration()
	if !ok {
		return true
	}
	return !s.nowFunc().Before(exp.Add(-s.expiryBuffer))
}

func (s *Store) IsTokenValid() bool {
	return s.HasToken() && !s.IsTokenExpired()
}

// UserID returns the sub claim of the access token.
func (s *Store) UserID() (string, bool) {
	claims, ok := s.currentClaims()
	if !ok {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// Roles returns the roles claim of the access token, empty when absent.
func (s *Store) Roles() []string {
	claims, ok := s.currentClaims()
	if !ok {
		return []string{}
	}
	roles, ok := claims["roles"].([]any)
	if !ok {
		return []string{}
	}
	return utils.ToStringSlice(roles)
}

// Expiration returns the exp claim of the access token.
func (s *Store) Expiration() (time.Time, bool) {
	claims, ok := s.currentClaims()
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TimeUntilExpiration is the whole seconds left before exp, never negative.
func (s *Store) TimeUntilExpiration() time.Duration {
	exp, ok := s.Expiration()
	if !ok {
		return 0
	}
	remaining := exp.Sub(s.nowFunc()).Truncate(time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenSource exposes the current access token as an oauth2.TokenSource.
// It never refreshes; it fails with ErrNoAccessToken when the slot is empty.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeSource{store: s}
}

func (s *Store) currentClaims() (jwt.MapClaims, bool) {
	token, ok := s.AccessToken()
	if !ok {
		return nil, false
	}
	return s.Decode(token)
}

type storeSource struct {
	store *Store
}

func (ss storeSource) Token() (*oauth2.Token, error) {
	access, ok := ss.store.AccessToken()
	if !ok {
		return nil, autherrors.ErrNoAccessToken
	}
	t := &oauth2.Token{
		AccessToken: access,
		TokenType:   "Bearer",
	}
	if exp, ok := ss.store.Expiration(); ok {
		t.Expiry = exp
	}
	return t, nil
}
