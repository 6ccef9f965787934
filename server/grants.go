package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	refreshTokenTTL           = 24 * time.Hour
	rememberMeRefreshTokenTTL = 30 * 24 * time.Hour
	resetTokenTTL             = time.Hour
)

type refreshGrant struct {
	userID    string
	expiresAt time.Time
}

type resetGrant struct {
	email     string
	expiresAt time.Time
}

// grantStore holds the opaque refresh and reset tokens the API has issued.
// Both are single use.
type grantStore struct {
	lock    sync.Mutex
	refresh map[string]refreshGrant
	resets  map[string]resetGrant
}

func newGrantStore() *grantStore {
	return &grantStore{
		refresh: make(map[string]refreshGrant),
		resets:  make(map[string]resetGrant),
	}
}

func (g *grantStore) issueRefresh(userID string, expiresAt time.Time) string {
	token := uuid.NewString()

	g.lock.Lock()
	defer g.lock.Unlock()
	g.refresh[token] = refreshGrant{userID: userID, expiresAt: expiresAt}
	return token
}

// consumeRefresh removes the token and returns its grant when still valid.
func (g *grantStore) consumeRefresh(token string, now time.Time) (refreshGrant, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	grant, ok := g.refresh[token]
	if !ok {
		return refreshGrant{}, false
	}
	delete(g.refresh, token)
	if !now.Before(grant.expiresAt) {
		return refreshGrant{}, false
	}
	return grant, true
}

func (g *grantStore) revokeRefresh(token string) bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	_, ok := g.refresh[token]
	delete(g.refresh, token)
	return ok
}

// revokeUser removes every refresh token of the user and returns how many there were.
func (g *grantStore) revokeUser(userID string) int {
	g.lock.Lock()
	defer g.lock.Unlock()

	revoked := 0
	for token, grant := range g.refresh {
		if grant.userID == userID {
			delete(g.refresh, token)
			revoked++
		}
	}
	return revoked
}

func (g *grantStore) activeRefresh(userID string) int {
	g.lock.Lock()
	defer g.lock.Unlock()

	count := 0
	for _, grant := range g.refresh {
		if grant.userID == userID {
			count++
		}
	}
	return count
}

func (g *grantStore) issueReset(email string, expiresAt time.Time) string {
	token := uuid.NewString()

	g.lock.Lock()
	defer g.lock.Unlock()
	g.resets[token] = resetGrant{email: normaliseEmail(email), expiresAt: expiresAt}
	return token
}

func (g *grantStore) consumeReset(token string, now time.Time) (string, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	grant, ok := g.resets[token]
	if !ok {
		return "", false
	}
	delete(g.resets, token)
	if !now.Before(grant.expiresAt) {
		return "", false
	}
	return grant.email, true
}

func (g *grantStore) pendingReset(email string) (string, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()

	email = normaliseEmail(email)
	for token, grant := range g.resets {
		if grant.email == email {
			return token, true
		}
	}
	return "", false
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
