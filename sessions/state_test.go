package sessions_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *users.User {
	return &users.User{
		ID:          "u1",
		Email:       "admin@sakai.dev",
		FirstName:   "Ada",
		LastName:    "Admin",
		Roles:       []string{users.RoleAdmin, users.RoleUser},
		Permissions: []string{"users:read", "users:write"},
		IsActive:    true,
	}
}

func TestState_AuthenticatedTracksUser(t *testing.T) {
	s := sessions.NewState()
	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.CurrentUser())

	for _, u := range []*users.User{testUser(), nil, testUser(), testUser(), nil, nil} {
		s.SetUser(u)
		require.Equal(t, s.CurrentUser() != nil, s.IsAuthenticated())

		snap := s.Snapshot()
		require.Equal(t, snap.User != nil, snap.IsAuthenticated)
	}
}

func TestState_ClearSession(t *testing.T) {
	s := sessions.NewState()
	s.SetUser(testUser())
	s.Clear()

	require.False(t, s.IsAuthenticated())
	require.Nil(t, s.CurrentUser())
	require.Nil(t, s.Profile())
	require.Empty(t, s.Roles())
	require.Empty(t, s.UserID())
	require.Empty(t, s.UserEmail())
}

func TestState_InitializingIsIndependent(t *testing.T) {
	s := sessions.NewState()
	s.SetInitializing(true)
	require.True(t, s.IsInitializing())
	require.False(t, s.IsAuthenticated())

	s.SetUser(testUser())
	require.True(t, s.IsInitializing())

	s.SetInitializing(false)
	require.False(t, s.IsInitializing())
	require.True(t, s.IsAuthenticated())
}

func TestState_CopiesUser(t *testing.T) {
	s := sessions.NewState()
	u := testUser()
	s.SetUser(u)

	u.Roles[0] = "HACKED"
	require.True(t, s.HasRole(users.RoleAdmin))

	got := s.CurrentUser()
	got.Email = "changed@sakai.dev"
	require.Equal(t, "admin@sakai.dev", s.UserEmail())
}

func TestState_RolePredicates(t *testing.T) {
	s := sessions.NewState()

	require.False(t, s.HasRole(users.RoleAdmin))
	require.False(t, s.HasAnyRole(users.RoleAdmin))
	require.False(t, s.HasAllRoles())
	require.False(t, s.HasPermission("users:read"))

	s.SetUser(testUser())

	require.True(t, s.HasRole(users.RoleAdmin))
	require.False(t, s.HasRole(users.RoleManager))
	require.True(t, s.HasAnyRole(users.RoleManager, users.RoleUser))
	require.False(t, s.HasAllRoles(users.RoleAdmin, users.RoleManager))
	require.True(t, s.HasAllRoles(users.RoleAdmin, users.RoleUser))
	require.True(t, s.HasAllRoles())
	require.False(t, s.HasAnyRole())
	require.True(t, s.HasPermission("users:write"))
	require.False(t, s.HasPermission("users:delete"))
}

func TestState_DerivedViews(t *testing.T) {
	s := sessions.NewState()
	s.SetUser(testUser())

	require.Equal(t, "u1", s.UserID())
	require.Equal(t, "admin@sakai.dev", s.UserEmail())
	require.Equal(t, []string{users.RoleAdmin, users.RoleUser}, s.Roles())

	p := s.Profile()
	require.NotNil(t, p)
	require.Equal(t, "Ada Admin", p.FullName)
	require.Equal(t, []string{users.RoleAdmin, users.RoleUser}, p.Roles)
}

func TestState_UpdateUser(t *testing.T) {
	s := sessions.NewState()

	require.False(t, s.UpdateUser(users.Update{FirstName: utils.Ptr("Nobody")}))
	require.Nil(t, s.CurrentUser(), "a partial update never creates a user")

	s.SetUser(testUser())
	require.True(t, s.UpdateUser(users.Update{
		FirstName: utils.Ptr("Grace"),
		Roles:     []string{users.RoleManager},
	}))

	u := s.CurrentUser()
	require.Equal(t, "Grace", u.FirstName)
	require.Equal(t, "Admin", u.LastName)
	require.Equal(t, "admin@sakai.dev", u.Email)
	require.True(t, s.HasRole(users.RoleManager))
	require.False(t, s.HasRole(users.RoleAdmin))
}

func TestState_Subscribe(t *testing.T) {
	s := sessions.NewState()

	var got []sessions.Snapshot
	unsubscribe := s.Subscribe(func(snap sessions.Snapshot) {
		got = append(got, snap)
	})

	s.SetInitializing(true)
	s.SetInitializing(true)
	s.SetUser(testUser())
	s.SetInitializing(false)
	s.UpdateUser(users.Update{LastName: utils.Ptr("Lovelace")})
	s.Clear()

	require.Len(t, got, 5, "repeating the same initializing value does not notify")
	require.True(t, got[0].IsInitializing)
	require.True(t, got[1].IsAuthenticated)
	require.Equal(t, "u1", got[1].User.ID)
	require.False(t, got[2].IsInitializing)
	require.Equal(t, "Lovelace", got[3].User.LastName)
	require.False(t, got[4].IsAuthenticated)
	require.Nil(t, got[4].User)

	unsubscribe()
	unsubscribe()
	s.SetUser(testUser())
	require.Len(t, got, 5)
}

func TestState_ConcurrentChangesNotifyInOrder(t *testing.T) {
	s := sessions.NewState()

	var (
		lock sync.Mutex
		last sessions.Snapshot
		seen int
	)
	s.Subscribe(func(snap sessions.Snapshot) {
		assert.Equal(t, snap.IsAuthenticated, s.IsAuthenticated(), "a subscriber can read the state")
		lock.Lock()
		defer lock.Unlock()
		last = snap
		seen++
	})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := testUser()
			user.ID = fmt.Sprintf("u%d", i)
			s.SetUser(user)
			s.UpdateUser(users.Update{LastName: utils.Ptr(user.ID)})
		}()
	}
	wg.Wait()

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, 100, seen)
	require.Equal(t, s.UserID(), last.User.ID)
	require.Equal(t, s.CurrentUser().LastName, last.User.LastName)
}
