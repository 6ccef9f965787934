package sessions

import (
	"slices"
	"sync"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
)

// Snapshot is a point-in-time view of the session handed to subscribers.
type Snapshot struct {
	User            *users.User
	IsAuthenticated bool
	IsInitializing  bool
}

// State holds the authenticated user for one tab. It is rebuilt from the
// refresh token on every start and never persisted.
//
// The user and the authenticated flag are guarded by the same lock so a
// reader can never observe one without the other.
type State struct {
	lock         sync.RWMutex
	user         *users.User
	initializing bool

	// notifyLock is held from a change through its fan-out so subscribers
	// see changes in the order they were made.
	notifyLock  sync.Mutex
	subLock     sync.Mutex
	nextSubID   int
	subscribers map[int]func(Snapshot)
}

func NewState() *State {
	return &State{
		subscribers: make(map[int]func(Snapshot)),
	}
}

// SetUser stores a copy of user, or clears the session when user is nil.
func (s *State) SetUser(user *users.User) {
	s.notifyLock.Lock()
	defer s.notifyLock.Unlock()

	s.lock.Lock()
	s.user = user.Clone()
	snap := s.snapshotLocked()
	s.lock.Unlock()

	s.notify(snap)
}

// CurrentUser returns a copy of the current user, nil when anonymous.
func (s *State) CurrentUser() *users.User {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user.Clone()
}

func (s *State) IsAuthenticated() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user != nil
}

func (s *State) Clear() {
	s.SetUser(nil)
}

func (s *State) SetInitializing(initializing bool) {
	s.notifyLock.Lock()
	defer s.notifyLock.Unlock()

	s.lock.Lock()
	if s.initializing == initializing {
		s.lock.Unlock()
		return
	}
	s.initializing = initializing
	snap := s.snapshotLocked()
	s.lock.Unlock()

	s.notify(snap)
}

func (s *State) IsInitializing() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.initializing
}

// Snapshot returns the current user and flags together.
func (s *State) Snapshot() Snapshot {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.snapshotLocked()
}

func (s *State) Profile() *users.Profile {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user.Profile()
}

func (s *State) Roles() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.user == nil {
		return []string{}
	}
	return utils.CloneStrings(s.user.Roles)
}

func (s *State) UserID() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

func (s *State) UserEmail() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Email
}

func (s *State) HasRole(role string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user != nil && slices.Contains(s.user.Roles, role)
}

// HasAnyRole is false for an empty query.
func (s *State) HasAnyRole(roles ...string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user != nil && utils.ContainsAny(s.user.Roles, roles)
}

// HasAllRoles is true for an empty query when a user is set.
func (s *State) HasAllRoles(roles ...string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user != nil && utils.ContainsAll(s.user.Roles, roles)
}

func (s *State) HasPermission(permission string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.user != nil && slices.Contains(s.user.Permissions, permission)
}

// UpdateUser merges update into the current user. Without a user it does
// nothing; a partial update never creates one.
func (s *State) UpdateUser(update users.Update) bool {
	s.notifyLock.Lock()
	defer s.notifyLock.Unlock()

	s.lock.Lock()
	if s.user == nil {
		s.lock.Unlock()
		return false
	}
	s.user = s.user.Apply(update)
	snap := s.snapshotLocked()
	s.lock.Unlock()

	s.notify(snap)
	return true
}

// Subscribe registers fn for every change and returns a func that removes it.
// fn runs synchronously on the goroutine that made the change, one change at
// a time. fn may read the State but must not change it.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.subLock.Lock()
	defer s.subLock.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subLock.Lock()
			defer s.subLock.Unlock()
			delete(s.subscribers, id)
		})
	}
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		User:            s.user.Clone(),
		IsAuthenticated: s.user != nil,
		IsInitializing:  s.initializing,
	}
}

func (s *State) notify(snap Snapshot) {
	s.subLock.Lock()
	fns := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subLock.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
