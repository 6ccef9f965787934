package fakeuserrepo

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

var ErrNotFound = errors.New("not found")

type FakeUserRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if account.User.ID == "" {
		account.User.ID = uuid.New().String()
	}
	stored := *account
	stored.User = *account.User.Clone()
	ur.accounts[stored.User.ID] = &stored
	ur.emailIds[normalise(stored.User.Email)] = stored.User.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userID, ok := ur.emailIds[normalise(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return ur.copyOf(userID)
}

func (ur *FakeUserRepo) GetByID(ID string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.copyOf(ID)
}

func (ur *FakeUserRepo) SetPasswordHash(email, hash string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[normalise(email)]
	if !ok {
		return ErrNotFound
	}
	ur.accounts[userID].PasswordHash = hash
	return nil
}

func (ur *FakeUserRepo) copyOf(userID string) (*users.Account, error) {
	account, ok := ur.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *account
	c.User = *account.User.Clone()
	return &c, nil
}

func normalise(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
