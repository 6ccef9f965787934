package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/broadcast"
	"github.com/jrsteele09/go-auth-client/gateway"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Remote endpoints, relative to the versioned API base URL.
const (
	EndpointLogin                = "/auth/login"
	EndpointRegister             = "/auth/register"
	EndpointLogout               = "/auth/logout"
	EndpointLogoutAll            = "/auth/logout-all"
	EndpointRefresh              = "/auth/refresh"
	EndpointProfile              = "/auth/profile"
	EndpointPasswordReset        = "/auth/password-reset"
	EndpointPasswordResetConfirm = "/auth/password-reset-confirm"
	EndpointChangePassword       = "/auth/change-password"
)

// Operation labels reported to metrics.
const (
	opLogin                = "login"
	opRegister             = "register"
	opLogout               = "logout"
	opLogoutAll            = "logout_all"
	opPasswordReset        = "password_reset"
	opPasswordResetConfirm = "password_reset_confirm"
	opChangePassword       = "change_password"
)

const refreshFlightKey = "refresh"

// State is the lifecycle stage of the session held by a Coordinator.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateAuthenticated State = "AUTHENTICATED"
	StateAnonymous     State = "ANONYMOUS"
)

// Navigator performs the "go to the login view" side effect of a logout.
type Navigator interface {
	NavigateToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) NavigateToLogin() { f() }

type noopNavigator struct{}

func (noopNavigator) NavigateToLogin() {}

// Deps holds the collaborators a Coordinator orchestrates.
type Deps struct {
	Gateway     *gateway.Client        // Unauthenticated client for the API
	Tokens      *token.Store           // Access and refresh token storage of this tab
	Session     *sessions.State        // Current user of this tab
	Broadcaster *broadcast.Broadcaster // Login/logout notifications to and from other tabs
}

// Coordinator drives login, logout, registration, password management and
// token refresh for one tab, keeping its token store and session state in
// step with the remote API and with the other tabs.
type Coordinator struct {
	api         *gateway.Client
	authedAPI   *gateway.Client
	tokens      *token.Store
	session     *sessions.State
	broadcaster *broadcast.Broadcaster
	validator   *Validator
	navigator   Navigator
	logger      zerolog.Logger
	metrics     *metrics.Metrics

	flight singleflight.Group
	// generation changes on every login and every reset of the auth state.
	// Refreshes and restores started under an older generation are discarded.
	generation atomic.Uint64
	// applyLock serialises the generation check with the state change it guards.
	applyLock sync.Mutex
	loading   atomic.Int32

	lock        sync.RWMutex
	lastError   string
	initialized bool
	closed      bool
	restores    sync.WaitGroup
}

type CoordinatorOption func(*Coordinator)

func WithNavigator(n Navigator) CoordinatorOption {
	return func(c *Coordinator) {
		c.navigator = n
	}
}

func WithLogger(logger zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator wires the collaborators together and subscribes to the
// cross-tab notifications of the broadcaster. The Coordinator owns the
// broadcaster from then on and closes it in Close.
func NewCoordinator(deps Deps, options ...CoordinatorOption) (*Coordinator, error) {
	if deps.Gateway == nil {
		return nil, errors.New("[NewCoordinator] Gateway is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewCoordinator] Token store is required")
	}
	if deps.Session == nil {
		return nil, errors.New("[NewCoordinator] Session state is required")
	}
	if deps.Broadcaster == nil {
		return nil, errors.New("[NewCoordinator] Broadcaster is required")
	}

	c := &Coordinator{
		api:         deps.Gateway,
		tokens:      deps.Tokens,
		session:     deps.Session,
		broadcaster: deps.Broadcaster,
		validator:   NewValidator(),
		navigator:   noopNavigator{},
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.authedAPI = c.api.WithTokenSource(c.TokenSource())

	c.broadcaster.OnLogout(c.handleRemoteLogout)
	c.broadcaster.OnLogin(c.handleRemoteLogin)

	return c, nil
}

// Initialize restores the session from the refresh token persisted for this
// tab. Without one the coordinator becomes anonymous and nothing is sent.
// A failed restore leaves the tab anonymous; the error is returned but not
// recorded in Error.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.markInitialized()
	if !c.tokens.HasRefreshToken(ctx) {
		c.logger.Debug().Msg("No refresh token, starting anonymous")
		return nil
	}

	c.session.SetInitializing(true)
	defer c.session.SetInitializing(false)
	return c.restore(ctx)
}

// restore refreshes the access token, then loads the profile of its owner.
func (c *Coordinator) restore(ctx context.Context) error {
	gen := c.generation.Load()

	if _, err := c.RefreshToken(ctx); err != nil {
		c.logger.Info().Err(err).Msg("Session restore failed")
		c.clearAuthStateSince(ctx, gen)
		return errors.Wrap(err, "[Coordinator.restore] RefreshToken")
	}
	user, err := c.FetchProfile(ctx)
	if err != nil {
		c.logger.Info().Err(err).Msg("Session restore failed")
		c.clearAuthStateSince(ctx, gen)
		return errors.Wrap(err, "[Coordinator.restore] FetchProfile")
	}

	c.applyLock.Lock()
	defer c.applyLock.Unlock()
	if c.generation.Load() != gen {
		return errors.Wrap(autherrors.ErrRefreshSuperseded, "[Coordinator.restore]")
	}
	c.session.SetUser(user)
	c.logger.Info().Str("userId", user.ID).Msg("Session restored")
	return nil
}

func (c *Coordinator) Login(ctx context.Context, credentials authmodel.LoginCredentials) (*authmodel.AuthResponse, error) {
	done := c.begin()
	defer done()

	resp, err := c.authenticate(ctx, EndpointLogin, &credentials)
	c.metrics.ObserveAuthOperation(opLogin, err)
	if err != nil {
		return nil, c.fail(loginFailed, err)
	}
	c.logger.Info().Str("userId", resp.User.ID).Msg("Login successful")
	return resp, nil
}

func (c *Coordinator) Register(ctx context.Context, data authmodel.RegistrationData) (*authmodel.AuthResponse, error) {
	done := c.begin()
	defer done()

	resp, err := c.authenticate(ctx, EndpointRegister, &data)
	c.metrics.ObserveAuthOperation(opRegister, err)
	if err != nil {
		return nil, c.fail(registrationFailed, err)
	}
	c.logger.Info().Str("userId", resp.User.ID).Msg("Registration successful")
	return resp, nil
}

// authenticate posts body to a login style endpoint and installs the session
// it returns.
func (c *Coordinator) authenticate(ctx context.Context, endpoint string, body any) (*authmodel.AuthResponse, error) {
	if err := c.validator.Validate(body); err != nil {
		return nil, err
	}

	var resp authmodel.AuthResponse
	if err := c.api.Post(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.Wrapf(autherrors.ErrInvalidCredentials, "[Coordinator.authenticate] %s returned no tokens", endpoint)
	}

	c.applyLock.Lock()
	c.generation.Add(1)
	c.tokens.SetAccessToken(resp.AccessToken)
	c.tokens.SetRefreshToken(ctx, resp.RefreshToken)
	c.session.SetUser(&resp.User)
	c.applyLock.Unlock()
	c.markInitialized()

	c.broadcaster.BroadcastLogin(ctx)
	return &resp, nil
}

// Logout revokes the refresh token remotely when possible, then always tells
// the other tabs, clears this tab and navigates to the login view.
func (c *Coordinator) Logout(ctx context.Context) {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	var body authmodel.LogoutRequest
	if refreshToken, ok := c.tokens.RefreshToken(ctx); ok {
		body.RefreshToken = refreshToken
	}
	err := c.api.Post(ctx, EndpointLogout, body, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Remote logout failed, clearing local session")
	}
	c.metrics.ObserveAuthOperation(opLogout, err)

	c.broadcaster.BroadcastLogout(ctx)
	c.LogoutLocal(ctx)
}

// LogoutAll revokes every session of the user. Like Logout, the local session
// ends even when the call fails.
func (c *Coordinator) LogoutAll(ctx context.Context) {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	err := c.authedAPI.Post(ctx, EndpointLogoutAll, struct{}{}, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Remote logout of all sessions failed, clearing local session")
	}
	c.metrics.ObserveAuthOperation(opLogoutAll, err)

	c.broadcaster.BroadcastLogout(ctx)
	c.LogoutLocal(ctx)
}

// LogoutLocal ends the session of this tab without contacting the API.
func (c *Coordinator) LogoutLocal(ctx context.Context) {
	c.clearAuthState(ctx)
	c.navigator.NavigateToLogin()
}

// RefreshToken exchanges the stored refresh token for a new token pair and
// returns the new access token. Concurrent callers share a single request
// and its outcome. A failed refresh ends the session. A refresh that settles
// after a logout or a new login is discarded and fails with
// ErrRefreshSuperseded.
func (c *Coordinator) RefreshToken(ctx context.Context) (string, error) {
	ch := c.flight.DoChan(refreshFlightKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "[Coordinator.RefreshToken]")
	case res := <-ch:
		if res.Shared {
			c.metrics.ObserveRefreshShared()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	gen := c.generation.Load()

	refreshToken, ok := c.tokens.RefreshToken(ctx)
	if !ok {
		c.metrics.ObserveRefresh(metrics.ResultFailure)
		return "", errors.Wrap(autherrors.ErrNoRefreshToken, "[Coordinator.RefreshToken]")
	}

	var resp authmodel.RefreshTokenResponse
	err := c.api.Post(ctx, EndpointRefresh, authmodel.RefreshTokenRequest{RefreshToken: refreshToken}, &resp)
	if err == nil && resp.AccessToken == "" {
		err = errors.Wrap(autherrors.ErrNoAccessToken, "[Coordinator.RefreshToken] empty refresh response")
	}

	c.applyLock.Lock()
	if c.generation.Load() != gen {
		c.applyLock.Unlock()
		c.metrics.ObserveRefresh(metrics.ResultSuperseded)
		c.logger.Debug().Msg("Refresh result discarded, session changed while in flight")
		return "", errors.Wrap(autherrors.ErrRefreshSuperseded, "[Coordinator.RefreshToken]")
	}
	if err != nil {
		c.resetLocked(ctx)
		c.applyLock.Unlock()
		c.metrics.ObserveRefresh(metrics.ResultFailure)
		c.logger.Warn().Err(err).Msg("Token refresh failed, session cleared")
		return "", errors.Wrap(err, "[Coordinator.RefreshToken]")
	}
	c.tokens.SetAccessToken(resp.AccessToken)
	if resp.RefreshToken != "" {
		c.tokens.SetRefreshToken(ctx, resp.RefreshToken)
	}
	c.applyLock.Unlock()

	c.metrics.ObserveRefresh(metrics.ResultSuccess)
	return resp.AccessToken, nil
}

// FetchProfile loads the user owning the current access token.
func (c *Coordinator) FetchProfile(ctx context.Context) (*users.User, error) {
	if !c.hasCredentials(ctx) {
		return nil, errors.Wrap(autherrors.ErrNotAuthenticated, "[Coordinator.FetchProfile]")
	}
	var user users.User
	if err := c.authedAPI.Get(ctx, EndpointProfile, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Coordinator.FetchProfile]")
	}
	return &user, nil
}

func (c *Coordinator) RequestPasswordReset(ctx context.Context, request authmodel.PasswordResetRequest) error {
	return c.proxy(ctx, c.api, EndpointPasswordReset, &request, opPasswordReset, passwordResetFailed)
}

func (c *Coordinator) ConfirmPasswordReset(ctx context.Context, confirmation authmodel.PasswordResetConfirmation) error {
	return c.proxy(ctx, c.api, EndpointPasswordResetConfirm, &confirmation, opPasswordResetConfirm, passwordResetConfirmFailed)
}

// ChangePassword replaces the password of the signed in user.
func (c *Coordinator) ChangePassword(ctx context.Context, request authmodel.ChangePasswordRequest) error {
	if !c.hasCredentials(ctx) {
		return c.fail(passwordChangeFailed, autherrors.ErrNotAuthenticated)
	}
	return c.proxy(ctx, c.authedAPI, EndpointChangePassword, &request, opChangePassword, passwordChangeFailed)
}

// hasCredentials is true while an access token or a refresh token is held.
func (c *Coordinator) hasCredentials(ctx context.Context) bool {
	return c.tokens.HasToken() || c.tokens.HasRefreshToken(ctx)
}

// proxy validates body and posts it, with the loading and error bookkeeping
// of the other user facing operations but no session side effects.
func (c *Coordinator) proxy(ctx context.Context, api *gateway.Client, endpoint string, body any, op, operation string) error {
	done := c.begin()
	defer done()

	err := c.validator.Validate(body)
	if err == nil {
		err = api.Post(ctx, endpoint, body, nil)
	}
	c.metrics.ObserveAuthOperation(op, err)
	if err != nil {
		return c.fail(operation, err)
	}
	return nil
}

// TokenSource yields the current access token, refreshing it first when it
// is missing or about to expire.
func (c *Coordinator) TokenSource() oauth2.TokenSource {
	return refreshingSource{c: c}
}

// HTTPClient returns a client that authenticates every request with the
// access token of this tab.
func (c *Coordinator) HTTPClient() *http.Client {
	return c.authedAPI.HTTPClient()
}

// Gateway returns a gateway client that authenticates every request.
func (c *Coordinator) Gateway() *gateway.Client {
	return c.authedAPI
}

type refreshingSource struct {
	c *Coordinator
}

// Token refreshes with context.Background because oauth2.TokenSource carries
// no context. Cancelling the outbound request does not cancel the refresh; it
// stays bounded by the gateway timeout.
func (rs refreshingSource) Token() (*oauth2.Token, error) {
	if !rs.c.tokens.IsTokenValid() {
		if _, err := rs.c.RefreshToken(context.Background()); err != nil {
			return nil, err
		}
	}
	return rs.c.tokens.TokenSource().Token()
}

// Loading reports whether a user facing operation is in progress.
func (c *Coordinator) Loading() bool {
	return c.loading.Load() > 0
}

// Error is the message of the last failed user facing operation, formatted
// as "<operation>: <reason>", or "" when the last one succeeded.
func (c *Coordinator) Error() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.lastError
}

func (c *Coordinator) ClearError() {
	c.setError("")
}

func (c *Coordinator) State() State {
	switch {
	case c.session.IsInitializing():
		return StateInitializing
	case c.session.IsAuthenticated():
		return StateAuthenticated
	}

	c.lock.RLock()
	defer c.lock.RUnlock()
	if !c.initialized {
		return StateUninitialized
	}
	return StateAnonymous
}

func (c *Coordinator) Session() *sessions.State {
	return c.session
}

func (c *Coordinator) Tokens() *token.Store {
	return c.tokens
}

func (c *Coordinator) IsAuthenticated() bool {
	return c.session.IsAuthenticated()
}

func (c *Coordinator) CurrentUser() *users.User {
	return c.session.CurrentUser()
}

func (c *Coordinator) HasRole(role string) bool {
	return c.session.HasRole(role)
}

func (c *Coordinator) HasAnyRole(roles ...string) bool {
	return c.session.HasAnyRole(roles...)
}

func (c *Coordinator) HasAllRoles(roles ...string) bool {
	return c.session.HasAllRoles(roles...)
}

func (c *Coordinator) HasPermission(permission string) bool {
	return c.session.HasPermission(permission)
}

// Close stops reacting to other tabs, closes the broadcaster and waits for
// restores triggered by them to finish.
func (c *Coordinator) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	c.lock.Unlock()

	err := c.broadcaster.Close()
	c.restores.Wait()
	return err
}

func (c *Coordinator) handleRemoteLogout() {
	c.LogoutLocal(context.Background())
}

// handleRemoteLogin restores the session from this tab's own refresh token.
// Tokens are never taken from the tab that logged in.
func (c *Coordinator) handleRemoteLogin() {
	if c.session.IsAuthenticated() {
		return
	}

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.restores.Add(1)
	c.lock.Unlock()

	go func() {
		defer c.restores.Done()
		_ = c.restore(context.Background())
	}()
}

func (c *Coordinator) clearAuthState(ctx context.Context) {
	c.applyLock.Lock()
	c.resetLocked(ctx)
	c.applyLock.Unlock()
}

// clearAuthStateSince clears the auth state unless the generation moved past
// gen, in which case a newer session owns it.
func (c *Coordinator) clearAuthStateSince(ctx context.Context, gen uint64) {
	c.applyLock.Lock()
	defer c.applyLock.Unlock()
	if c.generation.Load() == gen {
		c.resetLocked(ctx)
	}
}

// resetLocked must be called with applyLock held.
func (c *Coordinator) resetLocked(ctx context.Context) {
	c.generation.Add(1)
	c.tokens.Clear(ctx)
	c.session.Clear()
	c.markInitialized()
}

func (c *Coordinator) markInitialized() {
	c.lock.Lock()
	c.initialized = true
	c.lock.Unlock()
}

// begin marks an operation as loading and clears the previous error. The
// returned func ends it.
func (c *Coordinator) begin() func() {
	c.loading.Add(1)
	c.setError("")
	return func() {
		c.loading.Add(-1)
	}
}

func (c *Coordinator) fail(operation string, err error) error {
	c.setError(fmt.Sprintf("%s: %s", operation, ExtractErrorMessage(err)))
	c.logger.Error().Err(err).Msg(operation)
	return err
}

func (c *Coordinator) setError(message string) {
	c.lock.Lock()
	c.lastError = message
	c.lock.Unlock()
}
