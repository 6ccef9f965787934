package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/broadcast"
	"github.com/jrsteele09/go-auth-client/broadcast/memchannel"
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/jrsteele09/go-auth-client/server"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/token/refresh/memrepo"
	"github.com/jrsteele09/go-auth-client/users"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	seedEmail    = "admin@sakai.dev"
	seedPassword = "changeme123"
)

// testFixture runs the stand-in API and a hub shared by every tab it opens.
type testFixture struct {
	api     *server.Server
	ts      *httptest.Server
	hub     *memchannel.Hub
	metrics *metrics.Metrics
}

// testTab is one browser tab: its own stores and coordinator.
type testTab struct {
	coordinator *auth.Coordinator
	tokens      *token.Store
	session     *sessions.State
	refreshRepo *memrepo.MemRepo
	navigations atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	api, err := server.New(config.MockAPI{
		JWTSecret:      "test-secret",
		AccessTokenTTL: 15 * time.Minute,
		SeedEmail:      seedEmail,
		SeedPassword:   seedPassword,
	}, fakeuserrepo.NewFakeUserRepo(), server.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	return &testFixture{
		api:     api,
		ts:      ts,
		hub:     memchannel.NewHub(),
		metrics: metrics.New(nil),
	}
}

func (f *testFixture) openTab(t *testing.T, storeOptions ...token.StoreOption) *testTab {
	t.Helper()
	return newTab(t, f.ts.URL, f.hub, f.metrics, storeOptions...)
}

func newTab(t *testing.T, baseURL string, hub *memchannel.Hub, m *metrics.Metrics, storeOptions ...token.StoreOption) *testTab {
	t.Helper()

	gw, err := gateway.New(apiConfig(baseURL), gateway.WithLogger(zerolog.Nop()), gateway.WithMetrics(m))
	require.NoError(t, err)

	tab := &testTab{
		refreshRepo: memrepo.New(),
		session:     sessions.NewState(),
	}
	tab.tokens = token.NewStore(tab.refreshRepo, append([]token.StoreOption{token.WithLogger(zerolog.Nop())}, storeOptions...)...)

	tab.coordinator, err = auth.NewCoordinator(auth.Deps{
		Gateway:     gw,
		Tokens:      tab.tokens,
		Session:     tab.session,
		Broadcaster: broadcast.New(hub.Open, broadcast.WithLogger(zerolog.Nop()), broadcast.WithMetrics(m)),
	},
		auth.WithLogger(zerolog.Nop()),
		auth.WithMetrics(m),
		auth.WithNavigator(auth.NavigatorFunc(func() { tab.navigations.Add(1) })),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tab.coordinator.Close() })
	return tab
}

func apiConfig(baseURL string) config.API {
	return config.API{
		BaseURL: baseURL + "/api",
		Version: "v1",
		Timeout: 5 * time.Second,
	}
}

// issueRefreshToken logs in without a coordinator, so no tab hears about it.
func (f *testFixture) issueRefreshToken(t *testing.T) string {
	t.Helper()

	gw, err := gateway.New(apiConfig(f.ts.URL), gateway.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	var resp authmodel.AuthResponse
	require.NoError(t, gw.Post(context.Background(), auth.EndpointLogin, authmodel.LoginCredentials{Email: seedEmail, Password: seedPassword}, &resp))
	return resp.RefreshToken
}

func (tab *testTab) storedRefreshToken(t *testing.T) string {
	t.Helper()
	v, _ := tab.tokens.RefreshToken(context.Background())
	return v
}

func (tab *testTab) login(t *testing.T) {
	t.Helper()
	_, err := tab.coordinator.Login(context.Background(), authmodel.LoginCredentials{Email: seedEmail, Password: seedPassword})
	require.NoError(t, err)
}

// listen joins the hub as a passive tab and records what it receives.
func listen(t *testing.T, hub *memchannel.Hub) func() []authmodel.EventType {
	t.Helper()

	ch, err := hub.Open(broadcast.DefaultChannelName)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	var (
		lock   sync.Mutex
		events []authmodel.EventType
	)
	ch.OnReceive(func(e authmodel.BroadcastEvent) {
		lock.Lock()
		defer lock.Unlock()
		events = append(events, e.Type)
	})
	return func() []authmodel.EventType {
		lock.Lock()
		defer lock.Unlock()
		return append([]authmodel.EventType(nil), events...)
	}
}

func TestNewCoordinator_RequiresDependencies(t *testing.T) {
	gw, err := gateway.New(apiConfig("http://localhost"))
	require.NoError(t, err)
	tokens := token.NewStore(memrepo.New())
	session := sessions.NewState()
	broadcaster := broadcast.New(nil, broadcast.WithLogger(zerolog.Nop()))

	tests := []struct {
		name string
		deps auth.Deps
	}{
		{"missing gateway", auth.Deps{Tokens: tokens, Session: session, Broadcaster: broadcaster}},
		{"missing tokens", auth.Deps{Gateway: gw, Session: session, Broadcaster: broadcaster}},
		{"missing session", auth.Deps{Gateway: gw, Tokens: tokens, Broadcaster: broadcaster}},
		{"missing broadcaster", auth.Deps{Gateway: gw, Tokens: tokens, Session: session}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewCoordinator(tt.deps)
			require.Error(t, err)
		})
	}
}

func TestCoordinator_InitializeWithoutRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	require.Equal(t, auth.StateUninitialized, tab.coordinator.State())
	require.NoError(t, tab.coordinator.Initialize(context.Background()))

	require.Equal(t, auth.StateAnonymous, tab.coordinator.State())
	require.False(t, tab.coordinator.IsAuthenticated())
	require.False(t, tab.session.IsInitializing())
	require.Zero(t, f.api.TotalCalls())
}

func TestCoordinator_InitializeRestoresSession(t *testing.T) {
	f := setupTestFixture(t)
	stored := f.issueRefreshToken(t)
	tab := f.openTab(t)
	require.NoError(t, tab.refreshRepo.Set(context.Background(), token.DefaultRefreshTokenKey, stored))

	var statesDuringRefresh []auth.State
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointRefresh {
			statesDuringRefresh = append(statesDuringRefresh, tab.coordinator.State())
		}
	})

	require.NoError(t, tab.coordinator.Initialize(context.Background()))

	require.Equal(t, []auth.State{auth.StateInitializing}, statesDuringRefresh)
	require.Equal(t, auth.StateAuthenticated, tab.coordinator.State())
	require.False(t, tab.session.IsInitializing())
	require.Equal(t, seedEmail, tab.coordinator.CurrentUser().Email)
	require.True(t, tab.tokens.IsTokenValid())
	require.NotEqual(t, stored, tab.storedRefreshToken(t), "refresh token rotates")
	require.Equal(t, 1, f.api.Calls(http.MethodPost, auth.EndpointRefresh))
	require.Equal(t, 1, f.api.Calls(http.MethodGet, auth.EndpointProfile))
}

func TestCoordinator_InitializeWithRevokedRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	require.NoError(t, tab.refreshRepo.Set(context.Background(), token.DefaultRefreshTokenKey, "revoked"))

	err := tab.coordinator.Initialize(context.Background())
	require.Error(t, err)

	require.Equal(t, auth.StateAnonymous, tab.coordinator.State())
	require.False(t, tab.session.IsInitializing())
	require.False(t, tab.tokens.HasRefreshToken(context.Background()))
	require.Empty(t, tab.coordinator.Error(), "a failed restore is silent")
	require.Zero(t, f.api.Calls(http.MethodGet, auth.EndpointProfile))
}

func TestCoordinator_LoginStoresTokensAndBroadcasts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var creds authmodel.LoginCredentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, authmodel.LoginCredentials{Email: "a@b.com", Password: "secret12"}, creds)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"accessToken":"t1","refreshToken":"r1","user":{"id":"u1","email":"a@b.com","roles":["USER"]}}}`))
	}))
	defer ts.Close()

	hub := memchannel.NewHub()
	received := listen(t, hub)
	tab := newTab(t, ts.URL, hub, nil)

	resp, err := tab.coordinator.Login(context.Background(), authmodel.LoginCredentials{Email: "a@b.com", Password: "secret12"})
	require.NoError(t, err)
	require.Equal(t, "u1", resp.User.ID)

	access, ok := tab.tokens.AccessToken()
	require.True(t, ok)
	require.Equal(t, "t1", access)
	stored, err := tab.refreshRepo.Get(context.Background(), token.DefaultRefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "r1", stored)
	require.Equal(t, "u1", tab.coordinator.CurrentUser().ID)
	require.Equal(t, auth.StateAuthenticated, tab.coordinator.State())
	require.Equal(t, []authmodel.EventType{authmodel.EventLogin}, received())
}

func TestCoordinator_Login(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	tab.login(t)

	require.True(t, tab.coordinator.IsAuthenticated())
	require.True(t, tab.coordinator.HasRole(users.RoleAdmin))
	require.True(t, tab.coordinator.HasAnyRole(users.RoleManager, users.RoleUser))
	require.False(t, tab.coordinator.HasAllRoles(users.RoleAdmin, users.RoleManager))
	require.True(t, tab.coordinator.HasPermission("users:write"))
	require.False(t, tab.coordinator.Loading())
	require.Empty(t, tab.coordinator.Error())

	userID, ok := tab.tokens.UserID()
	require.True(t, ok)
	require.Equal(t, tab.coordinator.CurrentUser().ID, userID)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthOperationsTotal.WithLabelValues("login", metrics.ResultSuccess)))
}

func TestCoordinator_LoginFailure(t *testing.T) {
	f := setupTestFixture(t)
	received := listen(t, f.hub)
	tab := f.openTab(t)

	_, err := tab.coordinator.Login(context.Background(), authmodel.LoginCredentials{Email: seedEmail, Password: "wrong-password"})
	require.Error(t, err)

	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Login failed: Invalid email or password", tab.coordinator.Error())
	require.False(t, tab.coordinator.Loading())
	require.False(t, tab.coordinator.IsAuthenticated())
	require.False(t, tab.tokens.HasToken())
	require.Empty(t, received())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthOperationsTotal.WithLabelValues("login", metrics.ResultFailure)))

	// The next attempt starts with a clean error.
	tab.login(t)
	require.Empty(t, tab.coordinator.Error())
}

func TestCoordinator_LoginValidation(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	_, err := tab.coordinator.Login(context.Background(), authmodel.LoginCredentials{})
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
	require.Equal(t, "Login failed: email is required; password is required", tab.coordinator.Error())
	require.False(t, tab.coordinator.Loading())

	_, err = tab.coordinator.Register(context.Background(), authmodel.RegistrationData{
		Email:     "new@sakai.dev",
		Password:  "short1",
		FirstName: "New",
		LastName:  "User",
	})
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
	require.Equal(t, "Registration failed: password must be at least 8 characters", tab.coordinator.Error())

	require.Zero(t, f.api.TotalCalls(), "invalid requests are never sent")
}

func TestCoordinator_LoadingDuringCall(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointLogin {
			close(entered)
			<-release
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := tab.coordinator.Login(context.Background(), authmodel.LoginCredentials{Email: seedEmail, Password: seedPassword})
		done <- err
	}()

	<-entered
	require.True(t, tab.coordinator.Loading())
	close(release)
	require.NoError(t, <-done)
	require.False(t, tab.coordinator.Loading())
}

func TestCoordinator_Register(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	data := authmodel.RegistrationData{
		Email:     "new@sakai.dev",
		Password:  "password1",
		FirstName: "New",
		LastName:  "User",
	}

	resp, err := tab.coordinator.Register(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, "new@sakai.dev", resp.User.Email)
	require.True(t, tab.coordinator.IsAuthenticated())
	require.Equal(t, []string{users.RoleUser}, tab.session.Roles())

	other := f.openTab(t)
	_, err = other.coordinator.Register(context.Background(), data)
	require.Error(t, err)
	require.Equal(t, "Registration failed: Email already registered", other.coordinator.Error())
	require.False(t, other.coordinator.IsAuthenticated())
}

func TestCoordinator_RefreshSingleFlight(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)
	before := tab.storedRefreshToken(t)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointRefresh {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
	})

	type result struct {
		token string
		err   error
	}
	first := make(chan result, 1)
	go func() {
		tok, err := tab.coordinator.RefreshToken(context.Background())
		first <- result{tok, err}
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh request never reached the API")
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()
	second, err := tab.coordinator.RefreshToken(context.Background())
	require.NoError(t, err)
	r := <-first
	require.NoError(t, r.err)

	require.NotEmpty(t, second)
	require.Equal(t, r.token, second)
	require.Equal(t, 1, f.api.Calls(http.MethodPost, auth.EndpointRefresh))

	access, _ := tab.tokens.AccessToken()
	require.Equal(t, second, access)
	require.NotEqual(t, before, tab.storedRefreshToken(t))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues(metrics.ResultSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RefreshSharedTotal))
}

func TestCoordinator_RefreshWithoutRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	_, err := tab.coordinator.RefreshToken(context.Background())
	require.ErrorIs(t, err, autherrors.ErrNoRefreshToken)
	require.Zero(t, f.api.TotalCalls())
}

func TestCoordinator_RefreshFailureClearsSession(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)

	f.api.FailRoute(http.MethodPost, auth.EndpointRefresh, server.Failure{Status: http.StatusUnauthorized, Message: "Refresh token revoked"})

	_, err := tab.coordinator.RefreshToken(context.Background())
	require.Error(t, err)
	var apiErr *gateway.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "Refresh token revoked", apiErr.Message)

	require.False(t, tab.coordinator.IsAuthenticated())
	require.False(t, tab.tokens.HasToken())
	require.False(t, tab.tokens.HasRefreshToken(context.Background()))
	require.Equal(t, auth.StateAnonymous, tab.coordinator.State())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues(metrics.ResultFailure)))
}

func TestCoordinator_RefreshSingleFlightSharesFailure(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)

	f.api.FailRoute(http.MethodPost, auth.EndpointRefresh, server.Failure{Status: http.StatusInternalServerError, Message: "boom"})
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointRefresh {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
	})

	first := make(chan error, 1)
	go func() {
		_, err := tab.coordinator.RefreshToken(context.Background())
		first <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("refresh request never reached the API")
	}
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()
	_, secondErr := tab.coordinator.RefreshToken(context.Background())
	firstErr := <-first

	require.Error(t, firstErr)
	require.Error(t, secondErr)
	require.Equal(t, firstErr.Error(), secondErr.Error())
	for _, err := range []error{firstErr, secondErr} {
		var apiErr *gateway.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "boom", apiErr.Message)
		require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	}
	require.Equal(t, 1, f.api.Calls(http.MethodPost, auth.EndpointRefresh))

	require.False(t, tab.coordinator.IsAuthenticated())
	require.False(t, tab.tokens.HasToken())
	require.False(t, tab.tokens.HasRefreshToken(context.Background()))
	require.Equal(t, auth.StateAnonymous, tab.coordinator.State())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues(metrics.ResultFailure)))
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.RefreshSharedTotal))
}

func TestCoordinator_RefreshSupersededByLogout(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointRefresh {
			entered <- struct{}{}
			<-release
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := tab.coordinator.RefreshToken(context.Background())
		done <- err
	}()
	<-entered

	tab.coordinator.LogoutLocal(context.Background())
	close(release)

	require.ErrorIs(t, <-done, autherrors.ErrRefreshSuperseded)
	require.False(t, tab.tokens.HasToken(), "a late refresh must not resurrect the session")
	require.False(t, tab.tokens.HasRefreshToken(context.Background()))
	require.False(t, tab.coordinator.IsAuthenticated())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues(metrics.ResultSuperseded)))
}

func TestCoordinator_RefreshCallerCancellation(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)

	release := make(chan struct{})
	f.api.OnRequest(func(method, path string) {
		if path == auth.EndpointRefresh {
			<-release
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tab.coordinator.RefreshToken(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The flight itself carries on and installs its result.
	close(release)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.RefreshTotal.WithLabelValues(metrics.ResultSuccess)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, tab.coordinator.IsAuthenticated())
}

func TestCoordinator_Logout(t *testing.T) {
	f := setupTestFixture(t)
	first := f.openTab(t)
	first.login(t)
	second := f.openTab(t)
	second.login(t)
	userID := first.coordinator.CurrentUser().ID
	require.Equal(t, 2, f.api.ActiveRefreshTokens(userID))

	first.coordinator.Logout(context.Background())

	require.False(t, first.coordinator.IsAuthenticated())
	require.False(t, first.tokens.HasRefreshToken(context.Background()))
	require.Equal(t, int32(1), first.navigations.Load())
	require.Equal(t, 1, f.api.ActiveRefreshTokens(userID), "only this tab's refresh token is revoked")

	require.False(t, second.coordinator.IsAuthenticated(), "other tabs follow a logout")
	require.False(t, second.tokens.HasToken())
	require.Equal(t, int32(1), second.navigations.Load())
}

func TestCoordinator_LogoutWhenAPIUnreachable(t *testing.T) {
	f := setupTestFixture(t)
	received := listen(t, f.hub)
	tab := f.openTab(t)
	tab.login(t)

	f.api.FailRoute(http.MethodPost, auth.EndpointLogout, server.Failure{})
	tab.coordinator.Logout(context.Background())

	require.Equal(t, 1, f.api.Calls(http.MethodPost, auth.EndpointLogout))
	require.False(t, tab.coordinator.IsAuthenticated())
	require.False(t, tab.tokens.HasToken())
	require.False(t, tab.tokens.HasRefreshToken(context.Background()))
	require.False(t, tab.coordinator.Loading())
	require.Equal(t, int32(1), tab.navigations.Load())
	require.Equal(t, []authmodel.EventType{authmodel.EventLogin, authmodel.EventLogout}, received())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthOperationsTotal.WithLabelValues("logout", metrics.ResultFailure)))
}

func TestCoordinator_LogoutAll(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)
	f.issueRefreshToken(t)
	userID := tab.coordinator.CurrentUser().ID
	require.Equal(t, 2, f.api.ActiveRefreshTokens(userID))

	tab.coordinator.LogoutAll(context.Background())

	require.Zero(t, f.api.ActiveRefreshTokens(userID))
	require.False(t, tab.coordinator.IsAuthenticated())
	require.Equal(t, int32(1), tab.navigations.Load())
}

func TestCoordinator_LogoutLocal(t *testing.T) {
	f := setupTestFixture(t)
	received := listen(t, f.hub)
	tab := f.openTab(t)
	tab.login(t)
	calls := f.api.TotalCalls()

	tab.coordinator.LogoutLocal(context.Background())

	require.Equal(t, calls, f.api.TotalCalls())
	require.False(t, tab.coordinator.IsAuthenticated())
	require.Equal(t, int32(1), tab.navigations.Load())
	require.Equal(t, []authmodel.EventType{authmodel.EventLogin}, received(), "a local logout is not broadcast")
}

func TestCoordinator_CrossTabLoginRestores(t *testing.T) {
	f := setupTestFixture(t)
	active := f.openTab(t)
	returning := f.openTab(t)
	require.NoError(t, returning.refreshRepo.Set(context.Background(), token.DefaultRefreshTokenKey, f.issueRefreshToken(t)))
	fresh := f.openTab(t)

	active.login(t)

	// Each tab restores from its own refresh token, so it catches up later.
	require.Eventually(t, returning.coordinator.IsAuthenticated, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, seedEmail, returning.coordinator.CurrentUser().Email)
	require.NotEqual(t, active.storedRefreshToken(t), returning.storedRefreshToken(t), "tokens are never shared between tabs")

	require.NoError(t, fresh.coordinator.Close())
	require.False(t, fresh.coordinator.IsAuthenticated(), "a tab without a refresh token stays anonymous")
}

func TestCoordinator_CloseStopsCrossTabEvents(t *testing.T) {
	f := setupTestFixture(t)
	first := f.openTab(t)
	first.login(t)
	second := f.openTab(t)
	second.login(t)

	require.NoError(t, second.coordinator.Close())
	require.NoError(t, second.coordinator.Close())
	first.coordinator.Logout(context.Background())

	require.True(t, second.coordinator.IsAuthenticated())
	require.Zero(t, second.navigations.Load())
}

func TestCoordinator_PasswordReset(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	ctx := context.Background()

	err := tab.coordinator.RequestPasswordReset(ctx, authmodel.PasswordResetRequest{Email: "not-an-email"})
	require.ErrorIs(t, err, autherrors.ErrInvalidRequest)
	require.Zero(t, f.api.TotalCalls())

	require.NoError(t, tab.coordinator.RequestPasswordReset(ctx, authmodel.PasswordResetRequest{Email: seedEmail}))
	resetToken, ok := f.api.ResetToken(seedEmail)
	require.True(t, ok)

	err = tab.coordinator.ConfirmPasswordReset(ctx, authmodel.PasswordResetConfirmation{Token: "bogus", NewPassword: "brandnew99"})
	require.Error(t, err)
	require.Equal(t, "Password reset confirmation failed: Invalid or expired reset token", tab.coordinator.Error())

	require.NoError(t, tab.coordinator.ConfirmPasswordReset(ctx, authmodel.PasswordResetConfirmation{Token: resetToken, NewPassword: "brandnew99"}))
	require.Empty(t, tab.coordinator.Error())
	require.False(t, tab.coordinator.IsAuthenticated(), "password reset has no session side effects")

	_, err = tab.coordinator.Login(ctx, authmodel.LoginCredentials{Email: seedEmail, Password: "brandnew99"})
	require.NoError(t, err)
}

func TestCoordinator_ChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)
	ctx := context.Background()

	err := tab.coordinator.ChangePassword(ctx, authmodel.ChangePasswordRequest{CurrentPassword: "wrong-one1", NewPassword: "brandnew99"})
	require.Error(t, err)
	require.Equal(t, "Password change failed: Current password is incorrect", tab.coordinator.Error())

	require.NoError(t, tab.coordinator.ChangePassword(ctx, authmodel.ChangePasswordRequest{CurrentPassword: seedPassword, NewPassword: "brandnew99"}))
	require.True(t, tab.coordinator.IsAuthenticated())
}

func TestCoordinator_TokenSourceRefreshesExpiredToken(t *testing.T) {
	f := setupTestFixture(t)
	// The tab's clock runs past the access token TTL, so every token looks expired.
	tab := f.openTab(t, token.WithNowFunc(func() time.Time { return time.Now().Add(20 * time.Minute) }))
	tab.login(t)

	user, err := tab.coordinator.FetchProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, seedEmail, user.Email)
	require.Equal(t, 1, f.api.Calls(http.MethodPost, auth.EndpointRefresh))

	tok, err := tab.coordinator.TokenSource().Token()
	require.NoError(t, err)
	access, _ := tab.tokens.AccessToken()
	require.Equal(t, access, tok.AccessToken)
}

func TestCoordinator_FetchProfileWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	_, err := tab.coordinator.FetchProfile(context.Background())
	require.ErrorIs(t, err, autherrors.ErrNotAuthenticated)
	require.Zero(t, f.api.TotalCalls())
}

func TestCoordinator_ChangePasswordWithoutSession(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)

	err := tab.coordinator.ChangePassword(context.Background(), authmodel.ChangePasswordRequest{CurrentPassword: seedPassword, NewPassword: "brandnew99"})
	require.ErrorIs(t, err, autherrors.ErrNotAuthenticated)
	require.Equal(t, "Password change failed: not authenticated", tab.coordinator.Error())
	require.False(t, tab.coordinator.Loading())
	require.Zero(t, f.api.TotalCalls())
}

func TestCoordinator_HTTPClientSendsBearer(t *testing.T) {
	f := setupTestFixture(t)
	tab := f.openTab(t)
	tab.login(t)

	resp, err := tab.coordinator.HTTPClient().Get(f.ts.URL + server.APIPrefix + server.RouteAuthProfile)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
